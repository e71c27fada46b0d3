package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrMiss = errors.New("cache miss")

// FileCache stores JSON values as one file per key under a directory. It
// backs the collaborator cache and the intake photo spool.
type FileCache struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// NewFileCache creates a cache in dir. The directory is created on first write.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir, now: time.Now}
}

// Dir returns the cache directory.
func (fc *FileCache) Dir() string {
	return fc.dir
}

// Get decodes a cached value into dest if it exists and is younger than ttl.
// A ttl of 0 means always expired.
func (fc *FileCache) Get(key string, ttl time.Duration, dest any) bool {
	info, err := os.Stat(fc.path(key))
	if err != nil {
		return false
	}
	if fc.now().Sub(info.ModTime()) > ttl || ttl <= 0 {
		return false
	}
	return fc.Load(key, dest) == nil
}

// Load decodes a cached value regardless of age.
func (fc *FileCache) Load(key string, dest any) error {
	data, err := os.ReadFile(fc.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrMiss
		}
		return fmt.Errorf("reading cache file: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decoding cache file %s: %w", key, err)
	}
	return nil
}

// Set stores value under key. The file is replaced atomically so readers
// never observe a partial write.
func (fc *FileCache) Set(key string, value any) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if err := os.MkdirAll(fc.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling cache value: %w", err)
	}

	tmp, err := os.CreateTemp(fc.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fc.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (fc *FileCache) Delete(key string) error {
	if err := os.Remove(fc.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

// Has reports whether key is present.
func (fc *FileCache) Has(key string) bool {
	_, err := os.Stat(fc.path(key))
	return err == nil
}

// Keys lists stored keys in lexical order.
func (fc *FileCache) Keys() ([]string, error) {
	entries, err := os.ReadDir(fc.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes all cached data.
func (fc *FileCache) Clear() error {
	keys, err := fc.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := fc.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (fc *FileCache) path(key string) string {
	return filepath.Join(fc.dir, sanitize(key)+".json")
}

// sanitize maps a key onto a safe file name.
func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, key)
}
