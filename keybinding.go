package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// KeybindingManager turns key presses into actions.
type KeybindingManager struct {
	keybindings map[string][]string
	parsed      map[string][]KeyCombination
}

// NewKeybindingManager parses every binding once up front. Names that are
// not in the key table are logged and ignored.
func NewKeybindingManager(keybindings map[string][]string) *KeybindingManager {
	keys := getKeyMapping()
	km := &KeybindingManager{
		keybindings: keybindings,
		parsed:      make(map[string][]KeyCombination),
	}
	for action, combos := range keybindings {
		for _, combo := range combos {
			mods, name := splitCombo(combo)
			key, ok := keys[name]
			if !ok {
				debugLog("ignoring unknown key %q for %s", combo, action)
				continue
			}
			km.parsed[action] = append(km.parsed[action], KeyCombination{Key: key, Mods: mods})
		}
	}
	return km
}

// getKeyMapping returns a mapping from the names in config.KeyNames to
// Ebiten keys
func getKeyMapping() map[string]ebiten.Key {
	return map[string]ebiten.Key{
		// Letters
		"KeyA": ebiten.KeyA, "KeyB": ebiten.KeyB, "KeyC": ebiten.KeyC, "KeyD": ebiten.KeyD,
		"KeyE": ebiten.KeyE, "KeyF": ebiten.KeyF, "KeyG": ebiten.KeyG, "KeyH": ebiten.KeyH,
		"KeyI": ebiten.KeyI, "KeyJ": ebiten.KeyJ, "KeyK": ebiten.KeyK, "KeyL": ebiten.KeyL,
		"KeyM": ebiten.KeyM, "KeyN": ebiten.KeyN, "KeyO": ebiten.KeyO, "KeyP": ebiten.KeyP,
		"KeyQ": ebiten.KeyQ, "KeyR": ebiten.KeyR, "KeyS": ebiten.KeyS, "KeyT": ebiten.KeyT,
		"KeyU": ebiten.KeyU, "KeyV": ebiten.KeyV, "KeyW": ebiten.KeyW, "KeyX": ebiten.KeyX,
		"KeyY": ebiten.KeyY, "KeyZ": ebiten.KeyZ,

		// Numbers
		"Key0": ebiten.Key0, "Key1": ebiten.Key1, "Key2": ebiten.Key2, "Key3": ebiten.Key3,
		"Key4": ebiten.Key4, "Key5": ebiten.Key5, "Key6": ebiten.Key6, "Key7": ebiten.Key7,
		"Key8": ebiten.Key8, "Key9": ebiten.Key9,

		// Special keys
		"Space":      ebiten.KeySpace,
		"Backspace":  ebiten.KeyBackspace,
		"Enter":      ebiten.KeyEnter,
		"Escape":     ebiten.KeyEscape,
		"Tab":        ebiten.KeyTab,
		"Home":       ebiten.KeyHome,
		"End":        ebiten.KeyEnd,
		"PageUp":     ebiten.KeyPageUp,
		"PageDown":   ebiten.KeyPageDown,
		"ArrowUp":    ebiten.KeyArrowUp,
		"ArrowDown":  ebiten.KeyArrowDown,
		"ArrowLeft":  ebiten.KeyArrowLeft,
		"ArrowRight": ebiten.KeyArrowRight,

		// Punctuation
		"Comma":     ebiten.KeyComma,
		"Period":    ebiten.KeyPeriod,
		"Slash":     ebiten.KeySlash,
		"Semicolon": ebiten.KeySemicolon,
		"Quote":     ebiten.KeyQuote,
		"Minus":     ebiten.KeyMinus,
		"Equal":     ebiten.KeyEqual,

		// Numpad
		"Numpad0":     ebiten.KeyNumpad0,
		"Numpad1":     ebiten.KeyNumpad1,
		"Numpad2":     ebiten.KeyNumpad2,
		"Numpad3":     ebiten.KeyNumpad3,
		"Numpad4":     ebiten.KeyNumpad4,
		"Numpad5":     ebiten.KeyNumpad5,
		"Numpad6":     ebiten.KeyNumpad6,
		"Numpad7":     ebiten.KeyNumpad7,
		"Numpad8":     ebiten.KeyNumpad8,
		"Numpad9":     ebiten.KeyNumpad9,
		"NumpadEnter": ebiten.KeyNumpadEnter,
	}
}

// KeyCombination is a key plus the exact modifiers that must be held.
type KeyCombination struct {
	Key  ebiten.Key
	Mods modifiers
}

// CheckAction reports whether a key bound to action went down this frame.
func (km *KeybindingManager) CheckAction(action string) bool {
	for _, c := range km.parsed[action] {
		if inpututil.IsKeyJustPressed(c.Key) && c.Mods.held() {
			return true
		}
	}
	return false
}

// ExecuteAction runs action if one of its keys was just pressed.
func (km *KeybindingManager) ExecuteAction(action string, inputActions InputActions) bool {
	if !km.CheckAction(action) {
		return false
	}

	debugLog("key action: %s", action)
	return globalActionExecutor.ExecuteAction(action, inputActions)
}

// GetKeybindings returns the configured bindings for the help screen.
func (km *KeybindingManager) GetKeybindings() map[string][]string {
	return km.keybindings
}
