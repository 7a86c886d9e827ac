package gif

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache shares decoded timelines between states that use the same file and options.
type Cache struct {
	lru  *lru.Cache[string, *Timeline]
	load func(path string, opts Options) (*Timeline, error)
}

// NewCache creates a cache holding at most size timelines.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[string, *Timeline](size)
	if err != nil {
		return nil, fmt.Errorf("gif cache: %w", err)
	}
	return &Cache{lru: c, load: LoadFile}, nil
}

// Load returns a cached timeline or decodes the file.
func (c *Cache) Load(path string, opts Options) (*Timeline, error) {
	key := fmt.Sprintf("%s|%s|%dx%d", path, opts.Transform, opts.Width, opts.Height)
	if tl, ok := c.lru.Get(key); ok {
		return tl, nil
	}

	tl, err := c.load(path, opts)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, tl)
	return tl, nil
}

// Len returns the number of cached timelines.
func (c *Cache) Len() int {
	return c.lru.Len()
}
