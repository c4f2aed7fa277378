// Package secrets resolves runtime-only values (form passwords) at fill time. Values are read
// from the environment first, then from the OS keyring.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when no source holds the requested secret.
var ErrNotFound = errors.New("secret not found")

// Resolver looks up a named secret.
type Resolver interface {
	Lookup(name string) (string, error)
}

// EnvSource reads secrets from environment variables.
type EnvSource struct {
	lookup func(string) (string, bool)
}

// NewEnvSource returns a source over os.LookupEnv.
func NewEnvSource() *EnvSource {
	return &EnvSource{lookup: os.LookupEnv}
}

// Lookup implements Resolver.
func (s *EnvSource) Lookup(name string) (string, error) {
	v, ok := s.lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// KeyringSource reads secrets from the OS keychain. The secret name is appended to the account
// so one service can hold several values.
type KeyringSource struct {
	Service string
	Account string
}

func (s *KeyringSource) user(name string) string {
	if s.Account == "" {
		return name
	}
	return s.Account + ":" + name
}

// Lookup implements Resolver.
func (s *KeyringSource) Lookup(name string) (string, error) {
	v, err := keyring.Get(s.Service, s.user(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring lookup %s: %w", name, err)
	}
	if strings.TrimSpace(v) == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores a secret in the keychain.
func (s *KeyringSource) Set(name, value string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("secret name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(s.Service, s.user(name), value)
}

// Delete removes a secret from the keychain.
func (s *KeyringSource) Delete(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("secret name is empty")
	}
	err := keyring.Delete(s.Service, s.user(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Chain tries each resolver in order and returns the first hit.
type Chain []Resolver

// Lookup implements Resolver. A keyring backend that is unavailable is treated like a miss.
func (c Chain) Lookup(name string) (string, error) {
	var lastErr error
	for _, r := range c {
		v, err := r.Lookup(name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %s (%v)", ErrNotFound, name, lastErr)
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Static is a fixed map, used by tests and dry runs.
type Static map[string]string

// Lookup implements Resolver.
func (s Static) Lookup(name string) (string, error) {
	if v, ok := s[name]; ok && v != "" {
		return v, nil
	}
	return "", ErrNotFound
}
