// Package thumbnail caches base64 image previews for search results and fetches
// missing ones in the background.
package thumbnail

import (
	"sync"

	"github.com/hyperjump/mitsukeru/internal/models"
)

// Cache maps document paths to base64 previews for a single result set. Reset
// starts a new generation; writes tagged with an older generation are dropped.
type Cache struct {
	entries    map[string]string
	generation uint64
	mu         sync.RWMutex
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Get returns the cached preview for path, or a placeholder with an empty Base64.
func (c *Cache) Get(path string) models.Thumbnail {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.Thumbnail{Path: path, Base64: c.entries[path]}
}

// Has reports whether a non-empty preview is cached for path.
func (c *Cache) Has(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[path] != ""
}

// Put stores a preview in the current generation.
func (c *Cache) Put(path, base64 string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = base64
}

// PutIfGeneration stores a preview only if no Reset happened since gen was read.
func (c *Cache) PutIfGeneration(gen uint64, path, base64 string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.entries[path] = base64
	return true
}

// Reset drops every entry and starts a new generation.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]string)
	c.generation++
}

// Generation returns the current generation.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of all entries.
func (c *Cache) Snapshot() []models.Thumbnail {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Thumbnail, 0, len(c.entries))
	for path, b64 := range c.entries {
		out = append(out, models.Thumbnail{Path: path, Base64: b64})
	}
	return out
}
