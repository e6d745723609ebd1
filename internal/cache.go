package internal

import (
	"crypto/md5"
	"fmt"
	"sync"
	"time"
)

const defaultMaxAge = 10 * time.Minute

type CacheEntry struct {
	Hash         string
	Result       *FileResult
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Cache remembers file results keyed by the md5 of the file content, so a
// file rewritten with identical bytes is not analysed again.
type Cache struct {
	entries map[string]CacheEntry
	mutex   sync.Mutex
	maxAge  time.Duration
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		maxAge:  defaultMaxAge,
	}
}

func (c *Cache) Set(filename string, source []byte, res *FileResult) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.evictIdle(now)
	c.entries[filename] = CacheEntry{
		Hash:         contentHash(source),
		Result:       res,
		CreatedAt:    now,
		LastAccessed: now,
	}
}

func (c *Cache) Get(filename string, source []byte) (*FileResult, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[filename]
	if !exists {
		return nil, false
	}

	if c.isEntryInvalid(entry, source) {
		delete(c.entries, filename)
		return nil, false
	}

	entry.LastAccessed = time.Now()
	c.entries[filename] = entry

	return entry.Result, true
}

func (c *Cache) isEntryInvalid(entry CacheEntry, source []byte) bool {
	// too old
	if time.Since(entry.CreatedAt) > c.maxAge {
		return true
	}
	return entry.Hash != contentHash(source)
}

// evictIdle drops entries that have not been read for longer than maxAge.
func (c *Cache) evictIdle(now time.Time) {
	for filename, entry := range c.entries {
		if now.Sub(entry.LastAccessed) > c.maxAge {
			delete(c.entries, filename)
		}
	}
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entries)
}

func (c *Cache) SetMaxAge(duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.maxAge = duration
}

func (c *Cache) InvalidateAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]CacheEntry)
}

func contentHash(source []byte) string {
	return fmt.Sprintf("%x", md5.Sum(source))
}
