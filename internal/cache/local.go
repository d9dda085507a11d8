package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LocalCache implements Cache using a single local JSON file holding all
// entries. Suitable for single-instance deployments.
type LocalCache struct {
	mu       sync.RWMutex
	filePath string
}

// NewLocalCache creates a new local file-based cache.
// The filePath specifies where the cache file will be stored.
func NewLocalCache(filePath string) *LocalCache {
	return &LocalCache{
		filePath: filePath,
	}
}

// Get retrieves one entry from the local file.
func (c *LocalCache) Get(ctx context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := c.load()
	if err != nil {
		return nil, err
	}
	entry, ok := entries[key]
	if !ok {
		return nil, nil
	}
	return entry, nil
}

// Set stores one entry in the local file.
func (c *LocalCache) Set(ctx context.Context, key string, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filePath == "" {
		return nil
	}

	entries, err := c.load()
	if err != nil {
		return err
	}
	entries[key] = entry

	// Ensure directory exists
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	// Write atomically using temp file + rename
	tmpFile := c.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpFile, c.filePath); err != nil {
		os.Remove(tmpFile) // Clean up temp file
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}

// Close is a no-op for local cache.
func (c *LocalCache) Close() error {
	return nil
}

// load reads the full entry map. Callers hold the appropriate lock.
func (c *LocalCache) load() (map[string]*Entry, error) {
	if c.filePath == "" {
		return map[string]*Entry{}, nil
	}

	data, err := os.ReadFile(c.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Entry{}, nil // No cache file yet, not an error
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	entries := map[string]*Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return entries, nil
}
