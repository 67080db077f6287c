package client

import (
	"github.com/pkg/errors"
)

// Logout discards the stored credentials. The story API has no session
// endpoint, dropping the token locally is all there is to it.
func Logout() error {
	return errors.Wrap(Remove(), "could not remove credential file")
}
