package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog/log"

	"filmstrip/internal/bookmark"
	"filmstrip/internal/collection"
	"filmstrip/internal/config"
	"filmstrip/internal/navigation"
	"filmstrip/internal/render"
)

// Game owns the viewer state between ebiten frames.
type Game struct {
	cfg          config.Config
	configStatus config.LoadResult
	paths        []string

	// Loading phase. progress is nil once closed.
	loader     *collection.Loader
	progress   <-chan collection.Progress
	loading    bool
	loadStatus string

	coll         *collection.Collection
	cache        *render.Cache
	engine       *navigation.Engine
	emptyMessage string

	bookmarks *bookmark.Store
	ring      bookmark.Ring

	renderer            *Renderer
	inputHandler        *InputHandler
	keybindingManager   *KeybindingManager
	mousebindingManager *MousebindingManager

	showHelp           bool
	showInfo           bool
	overlayMessage     string
	overlayMessageTime time.Time

	fullscreen           bool
	savedWinW, savedWinH int
	interpolationChanged bool
	exiting              bool
}

// NewGame prepares a viewer for paths. Loading starts with Start.
func NewGame(cfg config.Config, status config.LoadResult, paths []string, bookmarks *bookmark.Store) *Game {
	g := &Game{
		cfg:          cfg,
		configStatus: status,
		paths:        paths,
		bookmarks:    bookmarks,
		fullscreen:   cfg.Fullscreen,
	}
	if bookmarks != nil {
		g.ring, _ = bookmarks.Get(bookmark.Key(paths))
	}

	g.keybindingManager = NewKeybindingManager(cfg.Keybindings)
	g.mousebindingManager = NewMousebindingManager(cfg.Mousebindings, mouseSettingsFrom(cfg))
	g.inputHandler = NewInputHandler(g, g.keybindingManager, g.mousebindingManager)
	return g
}

// Start launches the background collection build.
func (g *Game) Start(ctx context.Context) {
	g.loader = collection.Load(ctx, g.paths, collection.Options{
		Registry:   g.cfg.Registry(),
		Extensions: g.cfg.Extensions,
	})
	g.progress = g.loader.Progress()
	g.loading = true
	g.loadStatus = "Loading..."
}

// pollLoader takes whatever the loader has produced since the last frame
// without blocking.
func (g *Game) pollLoader() {
drain:
	for g.progress != nil {
		select {
		case p, ok := <-g.progress:
			if !ok {
				g.progress = nil
				break drain
			}
			g.loadStatus = fmt.Sprintf("Loading %s %s (%d files)", p.Kind, p.Path, p.Files)
		default:
			break drain
		}
	}

	select {
	case res, ok := <-g.loader.Result():
		if ok {
			g.finishLoading(res)
		}
	default:
	}
}

func (g *Game) finishLoading(res collection.Result) {
	g.loading = false
	if res.Err != nil {
		if !errors.Is(res.Err, context.Canceled) {
			log.Error().Err(res.Err).Msg("loading failed")
		}
		g.emptyMessage = fmt.Sprintf("Failed to load: %v", res.Err)
		return
	}

	g.coll = res.Collection
	if g.coll.Len() == 0 {
		g.emptyMessage = "No images found"
		return
	}
	log.Info().Int("files", g.coll.Len()).Str("scratch", g.coll.Scratch()).Msg("collection ready")

	g.cache = render.NewCache(g.cfg.CacheSize, render.DecodeFunc(render.DecodeFile), render.DrawScaler{})
	g.cache.SetInterpolation(g.cfg.InterpolationMode())
	g.engine = navigation.New(g.coll, g.cache, navigation.Options{
		Columns:        g.cfg.Columns,
		Spacing:        g.cfg.Spacing,
		RightToLeft:    g.cfg.RightToLeft,
		Position:       g.ring.Latest(),
		PreloadDelay:   time.Duration(g.cfg.PreloadDelayMs) * time.Millisecond,
		PreloadWorkers: g.cfg.PreloadWorkers,
	})
	g.engine.SchedulePreload()
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	if g.loading {
		g.pollLoader()
	}
	g.inputHandler.HandleInput()

	if ebiten.IsWindowBeingClosed() {
		g.exiting = true
	}
	if g.exiting {
		g.saveCurrentWindowSize()
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	g.renderer.Draw(screen)
}

// Layout implements ebiten.Game.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// Shutdown records the bookmark and releases the scratch tree. It is called
// once after the run loop ends.
func (g *Game) Shutdown() {
	if g.loader != nil {
		g.loader.Cancel()
		if g.loading {
			if coll, err := g.loader.Wait(); err == nil && coll != nil {
				g.coll = coll
			}
		}
	}

	if g.engine != nil {
		g.saveBookmark()
		// Close waits out a running preload before the scratch tree goes.
		g.engine.Close()
	}
	if g.cache != nil {
		g.cache.Purge()
	}

	if g.coll != nil {
		if err := g.coll.Close(); err != nil {
			log.Warn().Err(err).Msg("cannot remove scratch tree")
		}
	}
}

func (g *Game) saveBookmark() {
	if g.bookmarks == nil {
		return
	}
	g.ring.Push(g.engine.State().Position)
	g.bookmarks.Put(bookmark.Key(g.paths), g.ring)
	if err := g.bookmarks.Save(); err != nil {
		log.Warn().Err(err).Msg("cannot save bookmarks")
	}
}

func (g *Game) saveCurrentWindowSize() {
	w, h := ebiten.WindowSize()
	if err := config.SaveSession(g.session(w, h)); err != nil {
		log.Warn().Err(err).Msg("cannot save config")
	}
}

// session collects what outlives this run: the window and, when changed
// from the keyboard, the interpolation. Options given for this run only
// stay out of it.
func (g *Game) session(winW, winH int) config.Session {
	s := config.Session{WindowWidth: winW, WindowHeight: winH, Fullscreen: g.fullscreen}
	if g.fullscreen && g.savedWinW > 0 && g.savedWinH > 0 {
		// The windowed size is what should come back next time.
		s.WindowWidth, s.WindowHeight = g.savedWinW, g.savedWinH
	}
	if g.interpolationChanged {
		s.Interpolation = g.cfg.Interpolation
	}
	return s
}

// RenderState

func (g *Game) IsLoading() bool {
	return g.loading
}

func (g *Game) GetLoadingStatus() string {
	return g.loadStatus
}

func (g *Game) GetPlacements(width, height int) []navigation.Placement {
	if g.engine == nil {
		return nil
	}
	return g.engine.Layout(width, height)
}

func (g *Game) GetEmptyMessage() string {
	return g.emptyMessage
}

func (g *Game) IsShowingHelp() bool {
	return g.showHelp
}

func (g *Game) IsShowingInfo() bool {
	return g.showInfo
}

// GetInfoText describes the visible entries, e.g.
// "3-4 / 120  zoom 1.5x  RTL  bilinear  chapter1.zip/004.jpg".
func (g *Game) GetInfoText() string {
	if g.engine == nil {
		return ""
	}
	s := g.engine.State()
	total := g.coll.Len()
	last := min(s.Position+s.Columns, total)

	var b strings.Builder
	if last-s.Position > 1 {
		fmt.Fprintf(&b, "%d-%d / %d", s.Position+1, last, total)
	} else {
		fmt.Fprintf(&b, "%d / %d", s.Position+1, total)
	}
	if s.ZoomStep > 0 {
		fmt.Fprintf(&b, "  zoom %gx", s.Zoom())
	}
	if s.Rotated {
		b.WriteString("  rotated")
	}
	if s.RightToLeft {
		b.WriteString("  RTL")
	}
	fmt.Fprintf(&b, "  %s", g.cache.Interpolation())

	if e, ok := g.coll.Entry(s.Position); ok {
		origin := e.Origin
		name := filepath.Base(origin)
		if dir := filepath.Base(filepath.Dir(origin)); dir != "." && dir != string(filepath.Separator) {
			name = dir + "/" + name
		}
		fmt.Fprintf(&b, "  %s", truncateMiddle(name, 60))
	}
	return b.String()
}

func (g *Game) GetOverlayMessage() string {
	return g.overlayMessage
}

func (g *Game) GetOverlayMessageTime() time.Time {
	return g.overlayMessageTime
}

func (g *Game) GetFontSize() float64 {
	return g.cfg.HelpFontSize
}

func (g *Game) GetConfigStatus() config.LoadResult {
	return g.configStatus
}

func (g *Game) GetKeybindings() map[string][]string {
	return g.keybindingManager.GetKeybindings()
}

func (g *Game) GetMousebindings() map[string][]string {
	return g.mousebindingManager.GetMousebindings()
}

// InputActions

func (g *Game) Exit() {
	g.exiting = true
}

func (g *Game) ToggleHelp() {
	g.showHelp = !g.showHelp
}

func (g *Game) ToggleInfo() {
	g.showInfo = !g.showInfo
}

func (g *Game) ToggleFullscreen() {
	if !g.fullscreen {
		g.savedWinW, g.savedWinH = ebiten.WindowSize()
		ebiten.SetFullscreen(true)
	} else {
		ebiten.SetFullscreen(false)
		if g.savedWinW > 0 && g.savedWinH > 0 {
			ebiten.SetWindowSize(g.savedWinW, g.savedWinH)
		}
	}
	g.fullscreen = !g.fullscreen
}

func (g *Game) NavigateNext() {
	if g.engine != nil {
		g.engine.AdvanceScreen(1)
	}
}

func (g *Game) NavigatePrevious() {
	if g.engine != nil {
		g.engine.RetreatScreen(1)
	}
}

func (g *Game) NavigateNextSingle() {
	if g.engine != nil {
		g.engine.Advance(1)
	}
}

func (g *Game) NavigatePreviousSingle() {
	if g.engine != nil {
		g.engine.Retreat(1)
	}
}

func (g *Game) JumpFirst() {
	if g.engine != nil && g.engine.First() {
		g.ShowOverlayMessage("First page")
	}
}

func (g *Game) JumpLast() {
	if g.engine != nil && g.engine.Last() {
		g.ShowOverlayMessage("Last page")
	}
}

func (g *Game) ToggleReadingDirection() {
	if g.engine == nil {
		return
	}
	g.engine.ToggleRTL()
	if g.engine.State().RightToLeft {
		g.ShowOverlayMessage("Right to left")
	} else {
		g.ShowOverlayMessage("Left to right")
	}
}

func (g *Game) ToggleRotation() {
	if g.engine != nil {
		g.engine.ToggleRotation()
	}
}

func (g *Game) SetColumns(n int) {
	if g.engine == nil {
		return
	}
	if err := g.engine.SetColumns(n); err != nil {
		g.ShowOverlayMessage(err.Error())
		return
	}
	g.ShowOverlayMessage(fmt.Sprintf("Columns: %d", n))
}

// CycleColumns steps 1, 2, 3, 4 and back to 1.
func (g *Game) CycleColumns() {
	if g.engine == nil {
		return
	}
	g.SetColumns(g.engine.State().Columns%navigation.MaxColumns + 1)
}

// CycleInterpolation moves to the next scaling mode and drops every scaled
// bitmap made with the old one.
func (g *Game) CycleInterpolation() {
	if g.cache == nil {
		return
	}
	next := (g.cache.Interpolation() + 1) % (render.CatmullRom + 1)
	g.cache.SetInterpolation(next)
	g.cfg.Interpolation = next.String()
	g.interpolationChanged = true
	g.ShowOverlayMessage(fmt.Sprintf("Interpolation: %s", next))
}

func (g *Game) ZoomIn() {
	if g.engine != nil {
		g.engine.SetZoomStep(1)
	}
}

func (g *Game) ZoomOut() {
	if g.engine != nil {
		g.engine.SetZoomStep(-1)
	}
}

func (g *Game) ZoomReset() {
	if g.engine != nil {
		g.engine.SetZoomStep(-len(navigation.ZoomLadder))
	}
}

func (g *Game) PanOrPage(dx, dy int) {
	if g.engine != nil {
		g.engine.PanOrPage(dx, dy)
	}
}

func (g *Game) ShowOverlayMessage(message string) {
	g.overlayMessage = message
	g.overlayMessageTime = time.Now()
}

func (g *Game) GetTotalCount() int {
	if g.coll == nil {
		return 0
	}
	return g.coll.Len()
}
