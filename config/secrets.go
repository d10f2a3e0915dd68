package config

import (
	"errors"
	"os"

	"github.com/zalando/go-keyring"
)

// ErrSecretNotFound is returned when neither the environment nor the keyring hold a secret.
var ErrSecretNotFound = errors.New("secret not found")

// GetSecret returns a secret from the environment override or the OS keyring.
func GetSecret(name, envOverride string) (string, error) {
	if envOverride != "" {
		if v := os.Getenv(envOverride); v != "" {
			return v, nil
		}
	}
	v, err := keyring.Get(AppName, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// SetSecret stores a secret in the OS keyring. An empty value deletes it.
func SetSecret(name, value string) error {
	if value == "" {
		err := keyring.Delete(AppName, name)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return keyring.Set(AppName, name, value)
}
