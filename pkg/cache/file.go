package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileStore keeps one compressed record per file under a storage directory.
// File names are Key.String(), compatible with the original bridge's layout.
type FileStore struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFileStore creates the storage directory if needed and returns a store
// whose records live for ttl.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive (got %s)", ttl)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{
		dir: dir,
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Get reads and decodes the record for key.
func (s *FileStore) Get(ctx context.Context, key Key) (*Record, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			CacheMisses.WithLabelValues(LayerFile).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(LayerFile, "get").Inc()
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	rec, err := Decode(data)
	if err != nil {
		CacheErrors.WithLabelValues(LayerFile, "decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if rec.IsExpiredAt(s.now()) {
		// Lazy eviction: the expired file goes away on first observation
		_ = s.Delete(ctx, key)
		CacheEvictions.WithLabelValues(LayerFile).Inc()
		CacheMisses.WithLabelValues(LayerFile).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(LayerFile).Inc()
	return rec, nil
}

// Put writes a fresh record for key, replacing any existing file via
// write-to-temp then rename.
func (s *FileStore) Put(ctx context.Context, key Key, data json.RawMessage) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	blob, err := Encode(&Record{
		ExpiresAt: s.now().Add(s.ttl),
		Data:      data,
	})
	if err != nil {
		CacheErrors.WithLabelValues(LayerFile, "put").Inc()
		return err
	}

	tmpPath := path + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tmpPath, blob, 0o644); err != nil {
		CacheErrors.WithLabelValues(LayerFile, "put").Inc()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		CacheErrors.WithLabelValues(LayerFile, "put").Inc()
		return fmt.Errorf("rename cache file: %w", err)
	}

	CacheWrittenBytes.WithLabelValues(LayerFile).Add(float64(len(blob)))
	return nil
}

// Delete removes the file for key. Missing files are not an error.
func (s *FileStore) Delete(ctx context.Context, key Key) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		CacheErrors.WithLabelValues(LayerFile, "delete").Inc()
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Ping checks that the storage directory exists and is a directory.
func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat storage dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", s.dir)
	}
	return nil
}

// path maps key to a file inside the storage directory.
func (s *FileStore) path(key Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key.String()), nil
}
