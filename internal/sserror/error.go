package sserror

import "net/http"

// Tags classifying the errors that can cross a component boundary.
const (
	TagStorageUnavailable = "storage-unavailable"
	TagDuplicateKey       = "duplicate-key"
	TagNotAuthenticated   = "not-authenticated"
	TagUploadFailed       = "upload-failed"
	TagSyncFailure        = "sync-failure"
	TagNetworkUnavailable = "network-unavailable"
)

type (
	// An SSError represents an error that can be rendered by the control surface.
	SSError struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if sserr, ok := err.(*SSError); ok && sserr.HTTPCode != 0 {
		return sserr.HTTPCode
	}
	return http.StatusInternalServerError
}

// Tag returns the error's tag if it is an SSError.
func Tag(err error) string {
	if sserr, ok := err.(*SSError); ok {
		return sserr.FieldError.Tag
	}
	return ""
}

// New returns a new SSError with the given message.
func New(message string) *SSError {
	return &SSError{FieldError: err{Message: message}}
}

// NewWithTagCode returns a new SSError with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *SSError {
	return &SSError{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// StorageUnavailable returns an error raised when the durable store cannot be opened.
func StorageUnavailable(message string) *SSError {
	return NewWithTagCode(http.StatusServiceUnavailable, TagStorageUnavailable, message)
}

// DuplicateKey returns an error raised on an identity collision.
func DuplicateKey(message string) *SSError {
	return NewWithTagCode(http.StatusConflict, TagDuplicateKey, message)
}

// NotAuthenticated returns an error raised when no credential is present.
func NotAuthenticated(message string) *SSError {
	return NewWithTagCode(http.StatusUnauthorized, TagNotAuthenticated, message)
}

// UploadFailed returns an error raised when a single submission could not be uploaded.
func UploadFailed(message string) *SSError {
	return NewWithTagCode(http.StatusBadGateway, TagUploadFailed, message)
}

// SyncFailure returns an error raised by the sync machinery itself.
func SyncFailure(message string) *SSError {
	return NewWithTagCode(http.StatusInternalServerError, TagSyncFailure, message)
}

// NetworkUnavailable returns an error raised when both network and cache are exhausted.
func NetworkUnavailable(message string) *SSError {
	return NewWithTagCode(http.StatusBadGateway, TagNetworkUnavailable, message)
}

// Error implements error interface.
func (e *SSError) Error() string {
	return e.FieldError.Message
}
