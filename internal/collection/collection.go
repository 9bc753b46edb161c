// Package collection flattens directories and nested archives into one
// ordered sequence of files backed by a private scratch tree.
package collection

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/armon/go-radix"
)

// Entry is one file of a collection.
type Entry struct {
	Index int
	// Path locates the file inside the scratch tree. It exists on disk for
	// as long as the collection is open.
	Path string
	// Origin is where the file came from before linking and extraction.
	// Files from archives read as "<archive path>/<entry name>".
	Origin string
}

// Collection is the result of Build. It must not be mutated after it is
// handed to readers, and it must be closed to reclaim the scratch tree.
type Collection struct {
	mu      sync.Mutex
	scratch string
	entries []Entry
	origins *radix.Tree
	closed  bool
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	return len(c.entries)
}

// Entry returns entry i.
func (c *Collection) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Entries returns a copy of all entries in order.
func (c *Collection) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Key returns the identity of entry i used by caches, or "" when out of range.
func (c *Collection) Key(i int) string {
	e, ok := c.Entry(i)
	if !ok {
		return ""
	}
	return e.Path
}

// Open returns the content of entry i.
func (c *Collection) Open(i int) (io.ReadCloser, error) {
	e, ok := c.Entry(i)
	if !ok {
		return nil, fmt.Errorf("entry %d out of range [0,%d)", i, len(c.entries))
	}
	return os.Open(e.Path)
}

// ToOrigin maps a path inside the scratch tree back to the real path it was
// sourced from. Paths outside the tree are returned unchanged.
func (c *Collection) ToOrigin(path string) string {
	return toOrigin(c.origins, path)
}

// Scratch returns the root of the scratch tree.
func (c *Collection) Scratch() string {
	return c.scratch
}

// Close removes the scratch tree. It is safe to call more than once.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.entries = nil
	if err := os.RemoveAll(c.scratch); err != nil {
		return fmt.Errorf("removing scratch tree %s: %w", c.scratch, err)
	}
	return nil
}

func toOrigin(origins *radix.Tree, path string) string {
	if origins == nil {
		return path
	}
	prefix, v, ok := origins.LongestPrefix(path)
	if !ok {
		return path
	}
	rest := path[len(prefix):]
	if rest != "" && !strings.HasPrefix(rest, string(os.PathSeparator)) {
		return path
	}
	return v.(string) + rest
}
