// Package disk stores local key-value data as files using diskv.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	dbt "tracker/db/db"
)

type diskKVStore struct {
	d        *diskv.Diskv
	basePath string
}

// NewDiskKVStore creates a dbt.KVStore rooted at basePath. Keys of the form
// "collection:name" are stored as basePath/collection/name.
func NewDiskKVStore(basePath string) (dbt.KVStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", basePath, err)
	}
	return &diskKVStore{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		CacheSizeMax:      1024 * 1024, // 1MB
	}), basePath: basePath}, nil
}

func (s *diskKVStore) Get(_ context.Context, key string) ([]byte, error) {
	val, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, dbt.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, nil
}

func (s *diskKVStore) Put(_ context.Context, key string, value []byte) error {
	if err := s.d.Write(key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *diskKVStore) Delete(_ context.Context, key string) error {
	if !s.d.Has(key) {
		return nil
	}
	if err := s.d.Erase(key); err != nil {
		return fmt.Errorf("failed to erase %s: %w", key, err)
	}
	return nil
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.Split(s, ":")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	if len(pathKey.Path) == 0 {
		return pathKey.FileName
	}
	return fmt.Sprintf("%s:%s", strings.Join(pathKey.Path, ":"), pathKey.FileName)
}
