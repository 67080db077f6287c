package storyapi

import (
	"time"

	"github.com/araddon/dateparse"
	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// TokenExpiresAt extracts the expiry claim of a bearer token without
// verifying its signature. The server is the sole authority on validity;
// this is only used to report on a stored credential.
func TokenExpiresAt(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := &jwt.Parser{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, errors.Wrap(err, "could not parse token")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, errors.New("token has no expiry claim")
	}
	return time.Unix(int64(exp), 0).UTC(), nil
}

// TokenExpired returns true when the token carries an expiry claim in the past.
// A token without an expiry claim is reported as not expired.
func TokenExpired(token string) bool {
	exp, err := TokenExpiresAt(token)
	if err != nil {
		return false
	}
	return exp.Before(time.Now().UTC())
}

// CreatedTime parses the story's createdAt timestamp. The server renders
// ISO-8601 but the exact shape has varied, hence the lenient parser.
func (s Story) CreatedTime() (time.Time, error) {
	t, err := dateparse.ParseAny(s.CreatedAt)
	return t, errors.Wrap(err, "could not parse createdAt")
}
