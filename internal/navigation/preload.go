package navigation

import (
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// SchedulePreload stamps a new generation and defers warming the cache
// around the current position. Navigation calls it on every state change.
func (e *Engine) SchedulePreload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
}

// Close makes every pending preload stale and waits for a running one to
// finish, after which the engine no longer reads the sequence or images.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.gen.Add(1)
	e.mu.Unlock()

	e.running.Wait()
}

// neighbours lists the next page and then the previous page, trimmed so the
// visible window and the preloaded entries fit the cache together.
func neighbours(s State, n, capacity int) []int {
	visible := len(window(s, n))
	budget := capacity - visible
	if budget <= 0 {
		return nil
	}

	var idx []int
	for i := s.Position + s.Columns; i < s.Position+2*s.Columns && i < n; i++ {
		idx = append(idx, i)
	}
	for i := max(0, s.Position-s.Columns); i < s.Position; i++ {
		idx = append(idx, i)
	}
	if len(idx) > budget {
		idx = idx[:budget]
	}
	return idx
}

func (e *Engine) preload(gen uint64) {
	current := func() bool { return e.gen.Load() == gen }

	e.mu.Lock()
	if e.closed || !current() {
		e.mu.Unlock()
		return
	}
	e.running.Add(1)
	defer e.running.Done()
	s := e.state
	vw, vh := e.viewW, e.viewH
	e.mu.Unlock()

	n := e.seq.Len()
	idx := neighbours(s, n, e.images.Capacity())
	if len(idx) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(e.opts.PreloadWorkers)
	for _, i := range idx {
		key := e.seq.Key(i)
		p.Go(func() {
			if !current() {
				return
			}
			if err := e.images.AddIf(key, current); err != nil {
				log.Debug().Err(err).Int("index", i).Msg("preload decode failed")
			}
		})
	}
	p.Wait()

	if vw <= 0 || vh <= 0 {
		return
	}
	last := max(0, n-s.Columns)
	for _, pos := range []int{min(s.Position+s.Columns, last), max(s.Position-s.Columns, 0)} {
		if pos == s.Position {
			continue
		}
		page := s
		page.Position = pos
		if !current() || !e.cached(page, n) {
			continue
		}
		layout(e.images, e.seq, page, e.opts.Spacing, vw, vh, current)
	}
	log.Debug().Uint64("generation", gen).Ints("entries", idx).Msg("preloaded")
}

// cached reports whether every entry of the page at s is decoded. Entries
// may still be evicted before the layout, which then gives up.
func (e *Engine) cached(s State, n int) bool {
	for _, i := range window(s, n) {
		if !e.images.Contains(e.seq.Key(i)) {
			return false
		}
	}
	return true
}
