// Package navigation holds the reading position over a collection and turns
// it into screen placements.
package navigation

import (
	"errors"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrInvalidColumns is returned by SetColumns outside 1..MaxColumns.
var ErrInvalidColumns = errors.New("columns must be between 1 and 4")

const (
	MinColumns = 1
	MaxColumns = 4

	// PanEpsilon is the smallest pan movement, in pixels, that counts as a change.
	PanEpsilon = 1.0

	DefaultPreloadDelay   = 150 * time.Millisecond
	DefaultPreloadWorkers = 2
)

// ZoomLadder lists the zoom ratios SetZoomStep walks through.
var ZoomLadder = []float64{1, 1.5, 2, 3, 4}

// Sequence is the ordered list being browsed.
type Sequence interface {
	Len() int
	Key(i int) string
}

// Images provides bitmaps by key. *render.Cache satisfies it.
type Images interface {
	Get(key string) (image.Image, error)
	GetScaled(key string, w, h int) (image.Image, error)
	// GetIf and GetScaledIf only read entries already held and stop once
	// keep reports false. Preloading lays pages out through them.
	GetIf(key string, keep func() bool) (image.Image, error)
	GetScaledIf(key string, w, h int, keep func() bool) (image.Image, error)
	AddIf(key string, keep func() bool) error
	Contains(key string) bool
	Capacity() int
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

type Options struct {
	Columns     int
	Spacing     int
	RightToLeft bool
	// Position is the starting position, usually a restored bookmark.
	Position       int
	PreloadDelay   time.Duration
	PreloadWorkers int
	Scheduler      Scheduler
}

// State is a snapshot of the navigation state.
type State struct {
	Position    int
	Columns     int
	Rotated     bool
	RightToLeft bool
	ZoomStep    int
	PanX, PanY  float64
	Generation  uint64
}

// Zoom returns the ratio of the current zoom step.
func (s State) Zoom() float64 {
	return ZoomLadder[s.ZoomStep]
}

type anchor int

const (
	anchorNone anchor = iota
	anchorLeading
	anchorTrailing
)

// Engine is the navigation state machine. All methods are safe to call
// from the UI loop while a deferred preload runs.
type Engine struct {
	mu     sync.Mutex
	seq    Sequence
	images Images
	opts   Options
	state  State
	gen    atomic.Uint64

	closed  bool
	running sync.WaitGroup

	// Filled in by the last Layout.
	viewW, viewH         int
	overflowX, overflowY float64
	anchor               anchor
}

// New returns an engine positioned at opts.Position.
func New(seq Sequence, images Images, opts Options) *Engine {
	if opts.Columns < MinColumns || opts.Columns > MaxColumns {
		opts.Columns = MinColumns
	}
	if opts.Spacing < 0 {
		opts.Spacing = 0
	}
	if opts.PreloadDelay <= 0 {
		opts.PreloadDelay = DefaultPreloadDelay
	}
	if opts.PreloadWorkers <= 0 {
		opts.PreloadWorkers = DefaultPreloadWorkers
	}
	if opts.Scheduler == nil {
		opts.Scheduler = timerScheduler{}
	}

	e := &Engine{
		seq:    seq,
		images: images,
		opts:   opts,
		state: State{
			Columns:     opts.Columns,
			RightToLeft: opts.RightToLeft,
		},
	}
	e.state.Position = e.clamp(opts.Position)
	return e
}

// State returns a snapshot of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Generation = e.gen.Load()
	return s
}

// Generation returns the preload generation.
func (e *Engine) Generation() uint64 {
	return e.gen.Load()
}

func (e *Engine) maxPosition() int {
	return max(0, e.seq.Len()-e.state.Columns)
}

func (e *Engine) clamp(pos int) int {
	return min(max(pos, 0), e.maxPosition())
}

// moveTo must be called with e.mu held.
func (e *Engine) moveTo(pos int) bool {
	pos = e.clamp(pos)
	if pos == e.state.Position {
		return false
	}
	e.state.Position = pos
	e.state.PanX, e.state.PanY = 0, 0
	e.anchor = anchorNone
	e.touch()
	return true
}

// touch stamps a new generation and defers a preload for it. It must be
// called with e.mu held.
func (e *Engine) touch() {
	gen := e.gen.Add(1)
	e.opts.Scheduler.AfterFunc(e.opts.PreloadDelay, func() { e.preload(gen) })
}

// Advance moves forward by count entries.
func (e *Engine) Advance(count int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveTo(e.state.Position + count)
}

// Retreat moves back by count entries.
func (e *Engine) Retreat(count int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveTo(e.state.Position - count)
}

// AdvanceScreen moves forward by count pages.
func (e *Engine) AdvanceScreen(count int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveTo(e.state.Position + count*e.state.Columns)
}

// RetreatScreen moves back by count pages.
func (e *Engine) RetreatScreen(count int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveTo(e.state.Position - count*e.state.Columns)
}

func (e *Engine) Goto(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveTo(i)
}

func (e *Engine) First() bool {
	return e.Goto(0)
}

func (e *Engine) Last() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveTo(e.maxPosition())
}

// SetZoomStep moves delta steps along ZoomLadder, stopping at either end.
func (e *Engine) SetZoomStep(delta int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	step := min(max(e.state.ZoomStep+delta, 0), len(ZoomLadder)-1)
	if step == e.state.ZoomStep {
		return false
	}
	e.state.ZoomStep = step
	e.resetView()
	return true
}

func (e *Engine) ToggleRotation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Rotated = !e.state.Rotated
	e.resetView()
}

func (e *Engine) ToggleRTL() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.RightToLeft = !e.state.RightToLeft
	e.resetView()
}

// SetColumns changes how many entries are shown at once.
func (e *Engine) SetColumns(n int) error {
	if n < MinColumns || n > MaxColumns {
		return ErrInvalidColumns
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Columns = n
	e.state.Position = e.clamp(e.state.Position)
	e.resetView()
	return nil
}

func (e *Engine) resetView() {
	e.state.PanX, e.state.PanY = 0, 0
	e.anchor = anchorNone
	e.touch()
}

// Window returns the visible entry indices in display order.
func (e *Engine) Window() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return window(e.state, e.seq.Len())
}

func window(s State, n int) []int {
	var idx []int
	for i := s.Position; i < s.Position+s.Columns && i < n; i++ {
		idx = append(idx, i)
	}
	if s.RightToLeft {
		for l, r := 0, len(idx)-1; l < r; l, r = l+1, r-1 {
			idx[l], idx[r] = idx[r], idx[l]
		}
	}
	return idx
}

// Pan moves the view by dx, dy half-viewport steps within the overflow of
// the last layout. It reports whether the view moved by more than
// PanEpsilon.
func (e *Engine) Pan(dx, dy int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pan(dx, dy)
}

func (e *Engine) pan(dx, dy int) bool {
	x := clampPan(e.state.PanX+float64(dx*e.viewW)/2, e.overflowX)
	y := clampPan(e.state.PanY+float64(dy*e.viewH)/2, e.overflowY)
	if math.Abs(x-e.state.PanX) <= PanEpsilon && math.Abs(y-e.state.PanY) <= PanEpsilon {
		return false
	}
	e.state.PanX, e.state.PanY = x, y
	return true
}

// PanOrPage pans, and when the view is already at the edge in that
// direction it turns the page instead. A page reached forward starts at its
// leading edge, a page reached backward at its trailing edge.
func (e *Engine) PanOrPage(dx, dy int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pan(dx, dy) {
		return true
	}

	forward := dx > 0 || (dx == 0 && dy > 0)
	if dx != 0 && e.state.RightToLeft {
		forward = !forward
	}
	pos := e.state.Position - e.state.Columns
	a := anchorTrailing
	if forward {
		pos = e.state.Position + e.state.Columns
		a = anchorLeading
	}
	if !e.moveTo(pos) {
		return false
	}
	e.anchor = a
	log.Debug().Int("position", e.state.Position).Bool("forward", forward).Msg("paged at pan edge")
	return true
}

func clampPan(v, overflow float64) float64 {
	limit := overflow / 2
	return min(max(v, -limit), limit)
}
