package client_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wisangg/storysync/internal/client"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "storysync-credentials")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	client.Passphrase = func(string) ([]byte, error) {
		return []byte("hunter2"), nil
	}

	cfg := client.Config{
		Endpoint:    "https://story-api.example.lan/v1",
		Email:       "george@nowhere.lan",
		BearerToken: "jwt42",
	}
	require.NoError(t, client.Save(cfg))

	loaded, err := client.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	// A wrong passphrase cannot unseal the file.
	client.Passphrase = func(string) ([]byte, error) {
		return []byte("wrong"), nil
	}
	_, err = client.Load()
	assert.Error(t, err)

	require.NoError(t, client.Remove())
	_, err = client.Load()
	assert.Error(t, err)
}
