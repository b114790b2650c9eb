package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// keyringService is the keyring service under which API keys are stored.
const keyringService = "distill"

// ErrReadOnlyStore is returned when writing to a store that cannot be
// written, such as the process environment.
var ErrReadOnlyStore = errors.New("credential store is read-only")

// APIKeyStore reads and writes the upstream API key. Read returns "" when
// no key is stored; writing "" clears the stored key.
type APIKeyStore interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, key string) error
}

// NewKeyStore returns the store selected by c.Auth.Storage. Keyring entries
// are keyed by the upstream host so keys for different providers coexist.
func (c Config) NewKeyStore(environ func() []string) (APIKeyStore, error) {
	switch c.Auth.Storage {
	case CredentialStorageEnv:
		return &EnvStore{Name: c.Auth.EnvVar, Environ: environ}, nil
	case CredentialStorageFile:
		path, err := expandHome(c.Auth.File)
		if err != nil {
			return nil, err
		}
		return &FileStore{Path: path}, nil
	case CredentialStorageKeyring:
		account := c.UpstreamHost()
		if account == "" {
			account = "default"
		}
		return &KeyringStore{Service: keyringService, User: account}, nil
	default:
		return nil, fmt.Errorf("unknown credential storage %q", c.Auth.Storage)
	}
}

// EnvStore reads the key from an environment variable.
type EnvStore struct {
	Name string
	// Environ lists the environment. Defaults to os.Environ.
	Environ func() []string
}

func (s *EnvStore) Read(ctx context.Context) (string, error) {
	environ := s.Environ
	if environ == nil {
		environ = os.Environ
	}
	prefix := s.Name + "="
	for _, kv := range environ() {
		if value, ok := strings.CutPrefix(kv, prefix); ok {
			return strings.TrimSpace(value), nil
		}
	}
	return "", nil
}

func (s *EnvStore) Write(ctx context.Context, key string) error {
	return fmt.Errorf("%w: set %s in the environment instead", ErrReadOnlyStore, s.Name)
}

// FileStore keeps the key in a file readable only by the current user.
type FileStore struct {
	Path string
}

func (s *FileStore) Read(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileStore) Write(ctx context.Context, key string) error {
	if key == "" {
		if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing key file: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

// KeyringStore keeps the key in the operating system keyring.
type KeyringStore struct {
	Service string
	User    string
}

func (s *KeyringStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := keyring.Get(s.Service, s.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring: %w", err)
	}
	return key, nil
}

func (s *KeyringStore) Write(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		if err := keyring.Delete(s.Service, s.User); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("clearing keyring: %w", err)
		}
		return nil
	}
	if err := keyring.Set(s.Service, s.User, key); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

// expandHome resolves a leading "~/" to the user's home directory.
func expandHome(path string) (string, error) {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, rest), nil
}
