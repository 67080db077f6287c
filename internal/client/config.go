package client

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	saltKeyLength   = 16
	credentialsfile = ".storysync"
)

// A Config holds the client's credentials for the story server.
type Config struct {
	Endpoint    string `json:"endpoint"`
	Email       string `json:"email"`
	BearerToken string `json:"bearer_token"`
}

// Passphrase prompts for the passphrase sealing the credentials file.
// Overridable for tests.
var Passphrase = func(prompt string) ([]byte, error) {
	return readline.Password(prompt)
}

// Remove removes the credentials file from the current directory.
func Remove() error {
	return os.Remove(credentialsfile)
}

// Load gets the credentials from the current folder according to `credentialsfile` const.
func Load() (Config, error) {
	var cfg Config

	fmt.Println("Loading credentials from " + credentialsfile)
	ciphertext, err := os.ReadFile(credentialsfile)
	if err != nil {
		return cfg, errors.Wrap(err, "could not read credentials file")
	}
	if len(ciphertext) < saltKeyLength+chacha20poly1305.NonceSizeX {
		return cfg, errors.New("credentials file is truncated")
	}

	//
	// Key derivation of passphrase

	passphrase, err := Passphrase("passphrase: ")
	if err != nil {
		return cfg, errors.Wrap(err, "could not read passphrase from stdin")
	}

	salt := ciphertext[:saltKeyLength]
	ciphertext = ciphertext[saltKeyLength:]
	hash := argon2.IDKey(passphrase, salt, 3, 64<<10, 2, 32)

	//
	// Unseal config

	aead, err := chacha20poly1305.NewX(hash)
	if err != nil {
		return cfg, errors.Wrap(err, "could not create AEAD")
	}

	nonce := ciphertext[:aead.NonceSize()]
	ciphertext = ciphertext[aead.NonceSize():]

	payload, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return cfg, errors.Wrap(err, "could not decrypt credentials file")
	}

	err = json.Unmarshal(payload, &cfg)
	return cfg, errors.Wrap(err, "could not parse config")
}

// Save stores the credentials in the current folder according to `credentialsfile` const.
func Save(cfg Config) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "could not serialize config")
	}

	fmt.Println("Storing credentials in current directory as " + credentialsfile)
	passphrase, err := Passphrase("passphrase: ")
	if err != nil {
		return errors.Wrap(err, "could not read passphrase from stdin")
	}

	//
	// Key derivation of passphrase

	salt := make([]byte, saltKeyLength)
	if _, err := rand.Read(salt); err != nil {
		return errors.Wrap(err, "could not generate salt")
	}
	hash := argon2.IDKey(passphrase, salt, 3, 64<<10, 2, 32)

	//
	// Seal config

	aead, err := chacha20poly1305.NewX(hash)
	if err != nil {
		return errors.Wrap(err, "could not create AEAD")
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "could not generate nonce")
	}

	ciphertext := aead.Seal(nil, nonce, payload, nil)

	sealed := make([]byte, 0, saltKeyLength+len(nonce)+len(ciphertext))
	sealed = append(sealed, salt...)
	sealed = append(sealed, nonce...)
	sealed = append(sealed, ciphertext...)

	return errors.Wrap(os.WriteFile(credentialsfile, sealed, 0600), "could not write credentials file")
}
