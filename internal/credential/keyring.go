// Package credential stores the remote service's access token in the
// system keyring. The OAuth flow that obtains the token lives outside
// this repository; only the stored token is consumed here.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "tasksync"

// tokenKey is the keyring entry holding the remote API bearer token.
const tokenKey = "remote-token"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/tasksync/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("tasksync-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// TokenSource reads the remote API token from the keyring on demand, so
// a token refreshed by the authorization flow is picked up without a
// restart.
type TokenSource struct{}

// Token returns the stored remote API bearer token.
func (TokenSource) Token() (string, error) {
	return Get(tokenKey)
}

// StoreToken saves the remote API bearer token.
func StoreToken(token string) error {
	return Set(tokenKey, token)
}

// ClearToken removes the stored remote API bearer token.
func ClearToken() error {
	return Delete(tokenKey)
}
