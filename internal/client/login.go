package client

import (
	"fmt"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/wisangg/storysync/pkg/storyapi"
)

// Login connects to a story API server and stores the bearer token in the
// sealed credentials file.
func Login() error {
	cfg := Config{}

	endpoint, err := readline.Line("Endpoint: ")
	if err != nil {
		return errors.Wrap(err, "could not read endpoint from stdin")
	}
	cfg.Endpoint = endpoint

	client, err := storyapi.NewDefaultClient(cfg.Endpoint)
	if err != nil {
		return errors.Wrap(err, "could not reach given endpoint")
	}

	cfg.Email, err = readline.Line("Email: ")
	if err != nil {
		return errors.Wrap(err, "could not read email from stdin")
	}

	password, err := readline.Password("Password: ")
	if err != nil {
		return errors.Wrap(err, "could not read password from stdin")
	}

	login, err := client.Login(cfg.Email, string(password))
	if err != nil {
		return errors.Wrap(err, "could not login")
	}
	cfg.BearerToken = login.Token

	if at, err := storyapi.TokenExpiresAt(login.Token); err == nil {
		fmt.Printf("Logged in as %s (token expires %s)\n", login.Name, at.Format(time.RFC1123))
	} else {
		fmt.Printf("Logged in as %s\n", login.Name)
	}

	return Save(cfg)
}
