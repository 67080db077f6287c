package storyapi

import (
	"errors"
	"fmt"
	"io"

	"github.com/valyala/fastjson"
)

// ErrNotAuthenticated is returned when an operation requiring a credential
// is attempted with none present.
var ErrNotAuthenticated = errors.New("not authenticated")

// An APIError represents an HTTP error returned by the story server.
type APIError struct {
	StatusCode int
	Message    string
}

// parseAPIError extracts the `message` field of an error body.
func parseAPIError(r io.Reader, code int) error {
	apierr := &APIError{StatusCode: code}

	payload, err := io.ReadAll(r)
	if err != nil {
		apierr.Message = fmt.Sprintf("unreadable error body (status %d)", code)
		return apierr
	}

	v, err := fastjson.ParseBytes(payload)
	if err != nil {
		apierr.Message = fmt.Sprintf("unexpected error body (status %d)", code)
		return apierr
	}

	apierr.Message = string(v.GetStringBytes("message"))
	if apierr.Message == "" {
		apierr.Message = fmt.Sprintf("request failed (status %d)", code)
	}
	return apierr
}

func (e *APIError) Error() string {
	return e.Message
}
