package audio

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jagadeep298218/HackUTA7/internal/observability"
)

// Cache maps exact message text to a previously synthesized clip
type Cache interface {
	Get(text string) (*Clip, bool)
	Put(text string, clip *Clip)
	Len() int
}

// NewCache returns an unbounded MemoryCache when maxEntries is zero and a
// bounded LRUCache otherwise.
func NewCache(maxEntries int) (Cache, error) {
	switch {
	case maxEntries < 0:
		return nil, fmt.Errorf("invalid cache size %d", maxEntries)
	case maxEntries == 0:
		return NewMemoryCache(), nil
	default:
		return NewLRUCache(maxEntries)
	}
}

// MemoryCache is an append-only map. The first clip stored for a text wins
// and entries are never removed.
type MemoryCache struct {
	mu    sync.RWMutex
	clips map[string]*Clip
}

// NewMemoryCache creates an empty unbounded cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{clips: make(map[string]*Clip)}
}

func (c *MemoryCache) Get(text string) (*Clip, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	clip, ok := c.clips[text]
	return clip, ok
}

func (c *MemoryCache) Put(text string, clip *Clip) {
	if clip == nil {
		return
	}
	c.mu.Lock()
	if _, exists := c.clips[text]; !exists {
		c.clips[text] = clip
	}
	n := len(c.clips)
	c.mu.Unlock()

	observability.SetAudioCacheEntries("memory", n)
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clips)
}

// LRUCache holds at most a fixed number of clips, evicting the least recently used
type LRUCache struct {
	clips *lru.Cache[string, *Clip]
}

// NewLRUCache creates a bounded cache
func NewLRUCache(maxEntries int) (*LRUCache, error) {
	clips, err := lru.New[string, *Clip](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRUCache{clips: clips}, nil
}

func (c *LRUCache) Get(text string) (*Clip, bool) {
	return c.clips.Get(text)
}

// Put keeps the existing clip for a text, matching MemoryCache
func (c *LRUCache) Put(text string, clip *Clip) {
	if clip == nil {
		return
	}
	c.clips.ContainsOrAdd(text, clip)
	observability.SetAudioCacheEntries("lru", c.clips.Len())
}

func (c *LRUCache) Len() int {
	return c.clips.Len()
}
