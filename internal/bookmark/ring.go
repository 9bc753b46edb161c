// Package bookmark remembers the last positions visited in each set of
// sources.
package bookmark

import (
	"path/filepath"
	"strings"
)

// Size is the number of positions a Ring holds.
const Size = 10

// Ring holds recent positions, most recent first.
type Ring [Size]int

// Push records pos as the most recent position, dropping the oldest.
func (r *Ring) Push(pos int) {
	copy(r[1:], r[:Size-1])
	r[0] = pos
}

// Latest returns the most recent position.
func (r Ring) Latest() int {
	return r[0]
}

// Key identifies a set of sources: their absolute, cleaned paths joined
// with ':' in the order given. Tabs would break the file format and are
// replaced with '_'.
func Key(paths []string) string {
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		parts = append(parts, filepath.Clean(p))
	}
	return strings.ReplaceAll(strings.Join(parts, ":"), "\t", "_")
}
