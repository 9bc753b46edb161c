// Package render keeps decoded bitmaps and one scaled variant per entry in
// a bounded first-in first-out cache.
package render

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const defaultCapacity = 16

var (
	// ErrNotCached is returned by the guarded reads on a miss.
	ErrNotCached = errors.New("not in render cache")
	// ErrStale is returned by the guarded reads once keep reports false.
	ErrStale = errors.New("render request is stale")
)

type slot struct {
	raw     image.Image
	scaled  image.Image
	w, h    int
	evicted bool
}

// Cache maps entry keys to their raw bitmap and at most one scaled variant.
// Eviction is by insertion order: reads never refresh an entry.
type Cache struct {
	mu     sync.Mutex
	slots  *simplelru.LRU[string, *slot]
	max    int
	dec    Decoder
	sc     Scaler
	interp Interpolation
	group  singleflight.Group
}

// NewCache returns a cache holding up to maxItems entries. A nil Scaler
// uses DrawScaler.
func NewCache(maxItems int, dec Decoder, sc Scaler) *Cache {
	if maxItems < 1 {
		maxItems = defaultCapacity
	}
	if sc == nil {
		sc = DrawScaler{}
	}
	slots, err := simplelru.NewLRU[string, *slot](maxItems, func(key string, s *slot) {
		s.evicted = true
		s.scaled = nil
		log.Debug().Str("key", key).Msg("evicted from render cache")
	})
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &Cache{slots: slots, max: maxItems, dec: dec, sc: sc, interp: BiLinear}
}

// Add decodes key unless it is already cached.
func (c *Cache) Add(key string) error {
	_, err := c.load(key, nil)
	return err
}

// AddIf is Add for background work: keep is checked under the cache lock
// right before inserting, and a false result drops the decoded bitmap
// without touching the cache.
func (c *Cache) AddIf(key string, keep func() bool) error {
	_, err := c.load(key, keep)
	return err
}

// Get returns the raw bitmap of key, decoding it on a miss.
func (c *Cache) Get(key string) (image.Image, error) {
	s, err := c.load(key, nil)
	if err != nil {
		return nil, err
	}
	return s.raw, nil
}

func (c *Cache) load(key string, keep func() bool) (*slot, error) {
	c.mu.Lock()
	if s, ok := c.slots.Peek(key); ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		img, err := c.dec.Decode(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	img := v.(image.Image)

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.slots.Peek(key); ok {
		return s, nil
	}
	s := &slot{raw: img}
	if keep != nil && !keep() {
		return s, nil
	}
	c.slots.Add(key, s)
	return s, nil
}

// GetScaled returns key's bitmap at exactly w×h using the current
// interpolation. The result replaces any earlier scaled variant.
func (c *Cache) GetScaled(key string, w, h int) (image.Image, error) {
	s, err := c.load(key, nil)
	if err != nil {
		return nil, err
	}
	return c.scale(s, w, h, nil), nil
}

// GetIf returns the raw bitmap of key only if it is already cached and keep
// still holds. It never decodes or inserts, so it cannot evict anything.
func (c *Cache) GetIf(key string, keep func() bool) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.peekIf(key, keep)
	if err != nil {
		return nil, err
	}
	return s.raw, nil
}

// GetScaledIf is GetScaled for background work. Like GetIf it fails on a
// miss, and the scaled variant is stored only while keep holds.
func (c *Cache) GetScaledIf(key string, w, h int, keep func() bool) (image.Image, error) {
	c.mu.Lock()
	s, err := c.peekIf(key, keep)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.scale(s, w, h, keep), nil
}

// peekIf must be called with c.mu held.
func (c *Cache) peekIf(key string, keep func() bool) (*slot, error) {
	if !keep() {
		return nil, ErrStale
	}
	s, ok := c.slots.Peek(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCached, key)
	}
	return s, nil
}

func (c *Cache) scale(s *slot, w, h int, keep func() bool) image.Image {
	c.mu.Lock()
	if s.scaled != nil && s.w == w && s.h == h {
		scaled := s.scaled
		c.mu.Unlock()
		return scaled
	}
	interp := c.interp
	c.mu.Unlock()

	scaled := s.raw
	if b := s.raw.Bounds(); b.Dx() != w || b.Dy() != h {
		scaled = c.sc.Scale(s.raw, w, h, interp)
	}

	// A mode change or eviction while scaling leaves nothing to store into.
	c.mu.Lock()
	if c.interp == interp && !s.evicted && (keep == nil || keep()) {
		s.scaled, s.w, s.h = scaled, w, h
	}
	c.mu.Unlock()
	return scaled
}

// SetInterpolation changes the scaling kernel and drops every scaled variant.
func (c *Cache) SetInterpolation(mode Interpolation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.interp = mode
	for _, key := range c.slots.Keys() {
		if s, ok := c.slots.Peek(key); ok {
			s.scaled = nil
			s.w, s.h = 0, 0
		}
	}
}

func (c *Cache) Interpolation() Interpolation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interp
}

// Contains reports whether key has a raw bitmap cached.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots.Contains(key)
}

// hasScaled reports whether key has a scaled variant of exactly w×h.
func (c *Cache) hasScaled(key string, w, h int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots.Peek(key)
	return ok && s.scaled != nil && s.w == w && s.h == h
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots.Len()
}

// keys returns the cached keys, oldest first.
func (c *Cache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots.Keys()
}

func (c *Cache) Capacity() int {
	return c.max
}

// Purge empties both tiers. The viewer calls it on shutdown once no
// preload is left running.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots.Purge()
}
