package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/fsutil"
	"FeedDigest/internal/ports"
)

// FileCache keeps one JSON file per source with the time it was fetched.
type FileCache struct {
	dir string
}

var _ ports.FeedCache = (*FileCache)(nil)

type entry struct {
	Source    string            `json:"source"`
	FetchedAt time.Time         `json:"fetched_at"`
	Items     []domain.FeedItem `json:"items"`
}

// NewFileCache stores entries under dir.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

// Get returns the cached items when the entry is younger than maxAge.
func (c *FileCache) Get(source string, maxAge time.Duration, now time.Time) ([]domain.FeedItem, bool, error) {
	raw, err := os.ReadFile(c.path(source))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache %s: %w", source, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decode cache %s: %w", source, err)
	}
	if e.Source != source || now.Sub(e.FetchedAt) >= maxAge || e.FetchedAt.After(now) {
		return nil, false, nil
	}
	return e.Items, true, nil
}

// Put replaces the cache entry of source.
func (c *FileCache) Put(source string, items []domain.FeedItem, fetchedAt time.Time) error {
	if items == nil {
		items = []domain.FeedItem{}
	}
	data, err := json.MarshalIndent(entry{Source: source, FetchedAt: fetchedAt.UTC(), Items: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache %s: %w", source, err)
	}
	return fsutil.WriteFileAtomic(c.path(source), data, 0o644)
}

func (c *FileCache) path(source string) string {
	return filepath.Join(c.dir, source+".json")
}
