package navigation

import (
	"errors"
	"fmt"
	"image"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmstrip/internal/render"
)

type keys []string

func (k keys) Len() int         { return len(k) }
func (k keys) Key(i int) string { return k[i] }

// decodeKey decodes "name/WxH" keys and fails on names containing "bad".
func decodeKey(key string) (image.Image, error) {
	if strings.Contains(key, "bad") {
		return nil, errors.New("broken")
	}
	var w, h int
	if _, err := fmt.Sscanf(path.Base(key), "%dx%d", &w, &h); err != nil {
		return nil, err
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

func uniform(n int, size string) keys {
	k := make(keys, n)
	for i := range k {
		k[i] = fmt.Sprintf("%d/%s", i, size)
	}
	return k
}

type manualScheduler struct {
	mu     sync.Mutex
	fns    []func()
	delays []time.Duration
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
	m.delays = append(m.delays, d)
}

func (m *manualScheduler) take() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	fns := m.fns
	m.fns = nil
	return fns
}

func (m *manualScheduler) runAll() {
	for _, f := range m.take() {
		f()
	}
}

func newEngine(t *testing.T, seq keys, capacity int, opts Options) (*Engine, *render.Cache, *manualScheduler) {
	t.Helper()
	cache := render.NewCache(capacity, render.DecodeFunc(decodeKey), nil)
	sched := &manualScheduler{}
	opts.Scheduler = sched
	return New(seq, cache, opts), cache, sched
}

type countingScaler struct {
	n atomic.Int32
}

func (s *countingScaler) Scale(src image.Image, w, h int, mode render.Interpolation) image.Image {
	s.n.Add(1)
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// hookedImages runs hook once, the first time key is read.
type hookedImages struct {
	*render.Cache
	key  string
	hook func()
}

func (h *hookedImages) fire(key string) {
	if key == h.key && h.hook != nil {
		hook := h.hook
		h.hook = nil
		hook()
	}
}

func (h *hookedImages) Get(key string) (image.Image, error) {
	h.fire(key)
	return h.Cache.Get(key)
}

func (h *hookedImages) GetIf(key string, keep func() bool) (image.Image, error) {
	h.fire(key)
	return h.Cache.GetIf(key, keep)
}

// gatedKeys blocks the first Key call after arm until release is closed.
type gatedKeys struct {
	keys
	armed   atomic.Bool
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedKeys) arm() {
	g.entered = make(chan struct{})
	g.release = make(chan struct{})
	g.armed.Store(true)
}

func (g *gatedKeys) Key(i int) string {
	g.calls.Add(1)
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.keys[i]
}

func TestEngineClampsPosition(t *testing.T) {
	e, _, _ := newEngine(t, uniform(10, "10x10"), 4, Options{Columns: 3})

	assert.True(t, e.Last())
	assert.Equal(t, 7, e.State().Position)
	assert.False(t, e.Advance(100))
	assert.True(t, e.Retreat(100))
	assert.Equal(t, 0, e.State().Position)
	assert.False(t, e.Retreat(1))

	e.Goto(5)
	assert.Equal(t, 5, e.State().Position)
	e.AdvanceScreen(1)
	assert.Equal(t, 7, e.State().Position)
	e.RetreatScreen(2)
	assert.Equal(t, 1, e.State().Position)
	e.First()
	assert.Equal(t, 0, e.State().Position)
}

func TestEngineFewerEntriesThanColumns(t *testing.T) {
	e, _, _ := newEngine(t, uniform(2, "10x10"), 4, Options{Columns: 4, Position: 5})
	assert.Equal(t, 0, e.State().Position)
	e.Last()
	assert.Equal(t, 0, e.State().Position)
	assert.Equal(t, []int{0, 1}, e.Window())
}

func TestEngineStartsAtRestoredPosition(t *testing.T) {
	e, _, _ := newEngine(t, uniform(10, "10x10"), 4, Options{Columns: 2, Position: 9})
	assert.Equal(t, 8, e.State().Position)
}

func TestEngineSetColumns(t *testing.T) {
	e, _, _ := newEngine(t, uniform(10, "10x10"), 4, Options{Columns: 1, Position: 9})

	assert.ErrorIs(t, e.SetColumns(0), ErrInvalidColumns)
	assert.ErrorIs(t, e.SetColumns(5), ErrInvalidColumns)
	require.NoError(t, e.SetColumns(4))
	assert.Equal(t, 6, e.State().Position)
	assert.Equal(t, []int{6, 7, 8, 9}, e.Window())
}

func TestEngineWindowRTL(t *testing.T) {
	e, _, _ := newEngine(t, uniform(10, "10x10"), 4, Options{Columns: 3, RightToLeft: true})
	assert.Equal(t, []int{2, 1, 0}, e.Window())
	e.ToggleRTL()
	assert.Equal(t, []int{0, 1, 2}, e.Window())
}

func TestEngineZoomLadder(t *testing.T) {
	e, _, _ := newEngine(t, uniform(1, "10x10"), 4, Options{})

	assert.True(t, e.SetZoomStep(1))
	assert.Equal(t, 1.5, e.State().Zoom())
	assert.True(t, e.SetZoomStep(10))
	assert.Equal(t, 4.0, e.State().Zoom())
	assert.False(t, e.SetZoomStep(1))
	assert.True(t, e.SetZoomStep(-10))
	assert.Equal(t, 1.0, e.State().Zoom())
	assert.False(t, e.SetZoomStep(-1))
}

type rect struct{ X, Y, W, H int }

func rects(ps []Placement) []rect {
	out := make([]rect, len(ps))
	for i, p := range ps {
		out[i] = rect{p.X, p.Y, p.W, p.H}
	}
	return out
}

func TestLayout(t *testing.T) {
	seq := keys{"a/100x100", "b/150x100", "c/50x100"}

	tests := []struct {
		name    string
		spacing int
		rtl     bool
		want    []rect
		indices []int
	}{
		{
			name:    "edge to edge",
			want:    []rect{{0, 100, 100, 100}, {100, 100, 150, 100}, {250, 100, 50, 100}},
			indices: []int{0, 1, 2},
		},
		{
			name:    "with spacing",
			spacing: 10,
			want:    []rect{{0, 103, 93, 93}, {103, 103, 140, 93}, {253, 103, 47, 93}},
			indices: []int{0, 1, 2},
		},
		{
			name:    "right to left",
			rtl:     true,
			want:    []rect{{0, 100, 50, 100}, {50, 100, 150, 100}, {200, 100, 100, 100}},
			indices: []int{2, 1, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newEngine(t, seq, 4, Options{Columns: 3, Spacing: tt.spacing, RightToLeft: tt.rtl})
			got := e.Layout(300, 300)
			assert.Equal(t, tt.want, rects(got))
			for i, p := range got {
				assert.Equal(t, tt.indices[i], p.Index)
				assert.Equal(t, seq[p.Index], p.Key)
				assert.Equal(t, image.Rect(0, 0, p.W, p.H), p.Image.Bounds())
				assert.False(t, p.Rotated)
			}
		})
	}
}

func TestLayoutCentersStrip(t *testing.T) {
	e, _, _ := newEngine(t, keys{"a/100x200"}, 4, Options{Columns: 1})
	got := e.Layout(400, 200)
	assert.Equal(t, []rect{{150, 0, 100, 200}}, rects(got))
}

func TestLayoutRotated(t *testing.T) {
	e, _, _ := newEngine(t, keys{"a/200x100", "b/100x100"}, 4, Options{Columns: 2})
	e.ToggleRotation()

	got := e.Layout(300, 600)
	// Raw widths 300 along a 600 tall strip, heights 100 across 300: ratio 2.
	assert.Equal(t, []rect{{50, 0, 200, 400}, {50, 400, 200, 200}}, rects(got))
	require.Len(t, got, 2)
	assert.True(t, got[0].Rotated)
	assert.Equal(t, image.Rect(0, 0, 400, 200), got[0].Image.Bounds())
}

func TestLayoutDropsFailedDecodes(t *testing.T) {
	e, cache, _ := newEngine(t, keys{"a/100x100", "bad/100x100", "c/100x100"}, 4, Options{Columns: 3})

	got := e.Layout(200, 100)
	assert.Equal(t, []rect{{0, 0, 100, 100}, {100, 0, 100, 100}}, rects(got))
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 2, got[1].Index)
	assert.False(t, cache.Contains("bad/100x100"))
}

func TestLayoutEmpty(t *testing.T) {
	e, _, _ := newEngine(t, keys{}, 4, Options{Columns: 2})
	assert.Empty(t, e.Layout(100, 100))

	e, _, _ = newEngine(t, keys{"a/10x10"}, 4, Options{})
	assert.Empty(t, e.Layout(0, 0))
}

func TestPanClampsToOverflow(t *testing.T) {
	e, _, _ := newEngine(t, keys{"a/100x100"}, 4, Options{})
	e.SetZoomStep(2)

	// Nothing laid out yet, so there is nothing to pan over.
	assert.False(t, e.Pan(1, 0))

	got := e.Layout(100, 100)
	assert.Equal(t, []rect{{-50, -50, 200, 200}}, rects(got))

	assert.True(t, e.Pan(1, 0))
	assert.False(t, e.Pan(1, 0))
	got = e.Layout(100, 100)
	assert.Equal(t, -100, got[0].X)

	assert.True(t, e.Pan(-1, 1))
	s := e.State()
	assert.Equal(t, 0.0, s.PanX)
	assert.Equal(t, 50.0, s.PanY)
}

func TestPanWithoutOverflow(t *testing.T) {
	e, _, _ := newEngine(t, keys{"a/100x100"}, 4, Options{})
	e.Layout(100, 100)
	assert.False(t, e.Pan(1, 1))
	assert.False(t, e.Pan(-1, -1))
}

func TestPanOrPage(t *testing.T) {
	e, _, _ := newEngine(t, uniform(4, "100x100"), 4, Options{})
	e.SetZoomStep(1)
	e.Layout(100, 100)

	assert.True(t, e.PanOrPage(1, 0))
	assert.Equal(t, 0, e.State().Position)
	assert.Equal(t, 25.0, e.State().PanX)

	// At the right edge: turn the page and start at its top left.
	assert.True(t, e.PanOrPage(1, 0))
	assert.Equal(t, 1, e.State().Position)
	got := e.Layout(100, 100)
	assert.Equal(t, 0, got[0].X)
	assert.Equal(t, 0, got[0].Y)

	// Back again: the previous page opens at its bottom right.
	assert.True(t, e.PanOrPage(-1, 0))
	assert.Equal(t, 0, e.State().Position)
	got = e.Layout(100, 100)
	assert.Equal(t, -50, got[0].X)
	assert.Equal(t, -50, got[0].Y)

	e.Last()
	e.Layout(100, 100)
	assert.True(t, e.PanOrPage(0, 1))
	assert.False(t, e.PanOrPage(0, 1))
	assert.Equal(t, 3, e.State().Position)
}

func TestPanOrPageRTL(t *testing.T) {
	e, _, _ := newEngine(t, uniform(4, "100x100"), 4, Options{RightToLeft: true})
	e.Layout(100, 100)

	// Left means forward when reading right to left.
	assert.True(t, e.PanOrPage(-1, 0))
	assert.Equal(t, 1, e.State().Position)
	assert.True(t, e.PanOrPage(1, 0))
	assert.Equal(t, 0, e.State().Position)
	assert.False(t, e.PanOrPage(1, 0))
}

func TestNeighbours(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		n        int
		capacity int
		want     []int
	}{
		{"middle", State{Position: 4, Columns: 2}, 10, 10, []int{6, 7, 2, 3}},
		{"start", State{Position: 0, Columns: 2}, 10, 10, []int{2, 3}},
		{"end", State{Position: 8, Columns: 2}, 10, 10, []int{6, 7}},
		{"bounded by capacity", State{Position: 4, Columns: 2}, 10, 3, []int{6}},
		{"no room", State{Position: 4, Columns: 2}, 10, 2, nil},
		{"single column", State{Position: 1, Columns: 1}, 3, 16, []int{2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, neighbours(tt.state, tt.n, tt.capacity))
		})
	}
}

func TestPreloadWarmsNeighbours(t *testing.T) {
	seq := uniform(10, "100x100")
	sc := &countingScaler{}
	cache := render.NewCache(10, render.DecodeFunc(decodeKey), sc)
	sched := &manualScheduler{}
	e := New(seq, cache, Options{Columns: 2, Position: 4, Scheduler: sched})
	e.Layout(100, 50)
	require.EqualValues(t, 2, sc.n.Load())

	e.SchedulePreload()
	require.Len(t, sched.delays, 1)
	assert.Equal(t, DefaultPreloadDelay, sched.delays[0])
	sched.runAll()
	assert.EqualValues(t, 6, sc.n.Load())

	for _, i := range []int{2, 3, 6, 7} {
		assert.True(t, cache.Contains(seq[i]), "entry %d", i)
		// Already scaled by the preload.
		_, err := cache.GetScaled(seq[i], 50, 50)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 6, sc.n.Load())
	assert.False(t, cache.Contains(seq[8]))
}

func TestPreloadNeverEvictsTheNewerPage(t *testing.T) {
	seq := uniform(20, "10x10")
	cache := render.NewCache(4, render.DecodeFunc(decodeKey), nil)
	images := &hookedImages{Cache: cache, key: seq[6]}
	sched := &manualScheduler{}
	e := New(seq, images, Options{Columns: 1, Position: 5, PreloadWorkers: 1, Scheduler: sched})
	e.Layout(100, 100)

	e.SchedulePreload()
	fns := sched.take()
	require.Len(t, fns, 1)

	// While the preload lays out the next page the reader jumps away and
	// fills the cache, ending on a page the preload did not ask for.
	images.hook = func() {
		for _, pos := range []int{17, 16, 15, 4} {
			e.Goto(pos)
			require.NotEmpty(t, e.Layout(100, 100))
		}
	}
	fns[0]()
	require.Nil(t, images.hook)

	assert.True(t, cache.Contains(seq[4]))
	for _, i := range []int{17, 16, 15} {
		assert.True(t, cache.Contains(seq[i]), "entry %d", i)
	}
	assert.False(t, cache.Contains(seq[6]))
}

func TestPreloadStaleGenerationIsDiscarded(t *testing.T) {
	seq := uniform(10, "100x100")
	e, cache, sched := newEngine(t, seq, 10, Options{Columns: 2})

	e.SchedulePreload()
	stale := sched.take()
	e.Advance(2)
	fresh := sched.take()
	require.Len(t, stale, 1)
	require.Len(t, fresh, 1)

	stale[0]()
	assert.Equal(t, 0, cache.Len())

	fresh[0]()
	assert.True(t, cache.Contains(seq[4]))
	assert.True(t, cache.Contains(seq[0]))
}

func TestPreloadIgnoresFailures(t *testing.T) {
	seq := keys{"0/10x10", "bad/10x10", "2/10x10"}
	e, cache, sched := newEngine(t, seq, 4, Options{Columns: 1})
	e.Goto(1)
	sched.runAll()
	assert.True(t, cache.Contains("0/10x10"))
	assert.True(t, cache.Contains("2/10x10"))
	assert.False(t, cache.Contains("bad/10x10"))
}

func TestCloseStalesPendingPreload(t *testing.T) {
	e, cache, sched := newEngine(t, uniform(4, "10x10"), 4, Options{})
	before := e.Generation()
	e.SchedulePreload()
	assert.Equal(t, before+1, e.Generation())
	e.Close()
	sched.runAll()
	assert.Equal(t, 0, cache.Len())
}

func TestCloseWaitsForRunningPreload(t *testing.T) {
	seq := &gatedKeys{keys: uniform(6, "10x10")}
	cache := render.NewCache(4, render.DecodeFunc(decodeKey), nil)
	sched := &manualScheduler{}
	e := New(seq, cache, Options{Columns: 1, Position: 2, Scheduler: sched})

	e.SchedulePreload()
	fns := sched.take()
	require.Len(t, fns, 1)

	seq.arm()
	go fns[0]()
	<-seq.entered

	closed := make(chan struct{})
	go func() {
		e.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while a preload was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(seq.release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	// Nothing reads the sequence once Close has returned.
	before := seq.calls.Load()
	e.SchedulePreload()
	sched.runAll()
	assert.Equal(t, before, seq.calls.Load())
}

func TestEveryChangeStampsGeneration(t *testing.T) {
	e, _, sched := newEngine(t, uniform(10, "10x10"), 4, Options{Columns: 2})

	e.Advance(1)
	e.ToggleRotation()
	e.ToggleRTL()
	e.SetZoomStep(1)
	require.NoError(t, e.SetColumns(3))
	assert.EqualValues(t, 5, e.Generation())
	assert.Len(t, sched.take(), 5)

	// No-op moves leave the generation alone.
	e.First()
	e.First()
	assert.EqualValues(t, 6, e.Generation())
}
