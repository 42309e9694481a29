package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage defines the interface for keeping the originally uploaded images.
type Storage interface {
	// Save stores an upload and returns its storage key.
	Save(filename string, data []byte) (string, error)

	// Get retrieves an upload by storage key.
	Get(path string) ([]byte, error)

	// Delete removes an upload.
	Delete(path string) error
}

// LocalStorage keeps uploads in a flat directory on the local filesystem.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the upload directory if needed.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save stores an upload under its filename key.
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	key := filepath.Base(filename)
	if err := os.WriteFile(filepath.Join(l.basePath, key), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return key, nil
}

// Get retrieves an upload by storage key.
func (l *LocalStorage) Get(path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes an upload.
func (l *LocalStorage) Delete(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// resolve joins a storage key with the base path, refusing keys that would
// escape the upload directory.
func (l *LocalStorage) resolve(path string) (string, error) {
	full := filepath.Join(l.basePath, filepath.Base(path))
	if !strings.HasPrefix(full, filepath.Clean(l.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage key: %s", path)
	}
	return full, nil
}
