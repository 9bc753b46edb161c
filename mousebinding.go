package main

import (
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"filmstrip/internal/config"
)

// MouseSettings contains mouse-specific configuration
type MouseSettings struct {
	Enabled         bool
	WheelInverted   bool
	DoubleClickTime time.Duration
}

// mouseSettingsFrom picks the mouse options out of the configuration.
func mouseSettingsFrom(cfg config.Config) MouseSettings {
	return MouseSettings{
		Enabled:         cfg.EnableMouse,
		WheelInverted:   cfg.WheelInverted,
		DoubleClickTime: time.Duration(cfg.DoubleClickMs) * time.Millisecond,
	}
}

type mouseKind int

const (
	mouseClick mouseKind = iota
	mouseDoubleClick
	mouseWheel
)

// MouseCombination is a click, double click or wheel direction plus the
// exact modifiers that must be held.
type MouseCombination struct {
	Kind   mouseKind
	Button ebiten.MouseButton
	// WheelX and WheelY give the wheel direction as -1, 0 or 1.
	WheelX, WheelY float64
	Mods           modifiers
}

// clickTracker counts presses of one button inside the double click window.
type clickTracker struct {
	last   time.Time
	button ebiten.MouseButton
	count  int
}

// MousebindingManager turns mouse input into actions.
type MousebindingManager struct {
	mousebindings map[string][]string
	parsed        map[string][]MouseCombination
	settings      MouseSettings
	clicks        clickTracker
	now           func() time.Time
}

var mouseButtons = map[string]ebiten.MouseButton{
	"LeftClick":   ebiten.MouseButtonLeft,
	"RightClick":  ebiten.MouseButtonRight,
	"MiddleClick": ebiten.MouseButtonMiddle,
	"Back":        ebiten.MouseButton3,
	"Forward":     ebiten.MouseButton4,
}

var wheelDirections = map[string][2]float64{
	"WheelUp":    {0, 1},
	"WheelDown":  {0, -1},
	"WheelLeft":  {-1, 0},
	"WheelRight": {1, 0},
}

// NewMousebindingManager parses every binding once up front.
func NewMousebindingManager(mousebindings map[string][]string, settings MouseSettings) *MousebindingManager {
	mm := &MousebindingManager{
		mousebindings: mousebindings,
		parsed:        make(map[string][]MouseCombination),
		settings:      settings,
		now:           time.Now,
	}
	for action, combos := range mousebindings {
		for _, combo := range combos {
			c, ok := parseMouseCombination(combo)
			if !ok {
				debugLog("ignoring unknown mouse binding %q for %s", combo, action)
				continue
			}
			mm.parsed[action] = append(mm.parsed[action], c)
		}
	}
	return mm
}

// parseMouseCombination parses strings like "Shift+LeftClick",
// "DoubleLeftClick" or "Ctrl+WheelUp".
func parseMouseCombination(combo string) (MouseCombination, bool) {
	mods, name := splitCombo(combo)
	c := MouseCombination{Mods: mods}

	if dir, ok := wheelDirections[name]; ok {
		c.Kind = mouseWheel
		c.WheelX, c.WheelY = dir[0], dir[1]
		return c, true
	}
	if base, ok := strings.CutPrefix(name, "Double"); ok {
		c.Kind = mouseDoubleClick
		name = base
	}
	button, ok := mouseButtons[name]
	if !ok {
		return MouseCombination{}, false
	}
	c.Button = button
	return c, true
}

func (mm *MousebindingManager) triggered(c MouseCombination) bool {
	if !mm.settings.Enabled || !c.Mods.held() {
		return false
	}

	switch c.Kind {
	case mouseWheel:
		wx, wy := ebiten.Wheel()
		if mm.settings.WheelInverted {
			wy = -wy
		}
		return wx*c.WheelX > 0 || wy*c.WheelY > 0
	case mouseDoubleClick:
		return inpututil.IsMouseButtonJustPressed(c.Button) && mm.clicks.second(c.Button, mm.now(), mm.settings.DoubleClickTime)
	default:
		return inpututil.IsMouseButtonJustPressed(c.Button)
	}
}

// second records a press and reports whether it completes a double click.
func (t *clickTracker) second(button ebiten.MouseButton, now time.Time, window time.Duration) bool {
	if t.count > 0 && t.button == button && now.Sub(t.last) <= window {
		t.count = 0
		t.last = now
		return true
	}
	t.count = 1
	t.button = button
	t.last = now
	return false
}

// CheckAction reports whether a mouse binding of action fired this frame.
func (mm *MousebindingManager) CheckAction(action string) bool {
	for _, c := range mm.parsed[action] {
		if mm.triggered(c) {
			return true
		}
	}
	return false
}

// ExecuteAction runs action if one of its mouse bindings fired this frame.
func (mm *MousebindingManager) ExecuteAction(action string, inputActions InputActions) bool {
	if !mm.CheckAction(action) {
		return false
	}

	debugLog("mouse action: %s", action)
	return globalActionExecutor.ExecuteAction(action, inputActions)
}

// GetMousebindings returns the configured bindings for the help screen.
func (mm *MousebindingManager) GetMousebindings() map[string][]string {
	return mm.mousebindings
}
