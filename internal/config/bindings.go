package config

import (
	"fmt"
	"strings"
)

// KeyNames is the set of key names bindings may use.
var KeyNames = map[string]bool{
	"KeyA": true, "KeyB": true, "KeyC": true, "KeyD": true,
	"KeyE": true, "KeyF": true, "KeyG": true, "KeyH": true,
	"KeyI": true, "KeyJ": true, "KeyK": true, "KeyL": true,
	"KeyM": true, "KeyN": true, "KeyO": true, "KeyP": true,
	"KeyQ": true, "KeyR": true, "KeyS": true, "KeyT": true,
	"KeyU": true, "KeyV": true, "KeyW": true, "KeyX": true,
	"KeyY": true, "KeyZ": true,

	"Key0": true, "Key1": true, "Key2": true, "Key3": true,
	"Key4": true, "Key5": true, "Key6": true, "Key7": true,
	"Key8": true, "Key9": true,

	"Space": true, "Backspace": true, "Enter": true, "Escape": true,
	"Tab": true, "Home": true, "End": true, "PageUp": true, "PageDown": true,
	"ArrowUp": true, "ArrowDown": true, "ArrowLeft": true, "ArrowRight": true,

	"Comma": true, "Period": true, "Slash": true, "Semicolon": true,
	"Quote": true, "Minus": true, "Equal": true,

	"Numpad0": true, "Numpad1": true, "Numpad2": true, "Numpad3": true,
	"Numpad4": true, "Numpad5": true, "Numpad6": true, "Numpad7": true,
	"Numpad8": true, "Numpad9": true, "NumpadEnter": true,
}

// MouseNames is the set of mouse names bindings may use.
var MouseNames = map[string]bool{
	"LeftClick": true, "RightClick": true, "MiddleClick": true,
	"Back": true, "Forward": true,
	"DoubleLeftClick": true, "DoubleRightClick": true, "DoubleMiddleClick": true,
	"WheelUp": true, "WheelDown": true, "WheelLeft": true, "WheelRight": true,
}

// ValidateBindings checks every binding against names and rejects a
// binding claimed by two actions.
func ValidateBindings(bindings map[string][]string, names map[string]bool) error {
	known := make(map[string]bool, len(Actions))
	for _, a := range Actions {
		known[a.Name] = true
	}

	owner := make(map[string]string)
	for action, combos := range bindings {
		if !known[action] {
			return fmt.Errorf("unknown action '%s'", action)
		}
		for _, combo := range combos {
			if err := validateCombo(combo, names); err != nil {
				return fmt.Errorf("invalid binding '%s' for action '%s': %w", combo, action, err)
			}
			if other, ok := owner[combo]; ok {
				return fmt.Errorf("binding conflict: '%s' is bound to both '%s' and '%s'", combo, other, action)
			}
			owner[combo] = action
		}
	}
	return nil
}

func validateCombo(combo string, names map[string]bool) error {
	parts := strings.Split(combo, "+")
	name := parts[len(parts)-1]
	if name == "" {
		return fmt.Errorf("empty binding")
	}
	if !names[name] {
		return fmt.Errorf("unknown name: %s", name)
	}
	for _, mod := range parts[:len(parts)-1] {
		switch strings.ToLower(mod) {
		case "shift", "ctrl", "alt":
		default:
			return fmt.Errorf("unknown modifier: %s", mod)
		}
	}
	return nil
}
