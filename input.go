package main

import (
	"strings"

	"github.com/hajimehoshi/ebiten/v2"

	"filmstrip/internal/config"
)

// InputHandler handles keyboard and mouse input processing
type InputHandler struct {
	inputActions        InputActions
	keybindingManager   *KeybindingManager
	mousebindingManager *MousebindingManager
}

// NewInputHandler creates a new InputHandler
func NewInputHandler(inputActions InputActions, keybindingManager *KeybindingManager, mousebindingManager *MousebindingManager) *InputHandler {
	return &InputHandler{
		inputActions:        inputActions,
		keybindingManager:   keybindingManager,
		mousebindingManager: mousebindingManager,
	}
}

// HandleInput processes all input for the current frame
// Returns true if any input was processed, false otherwise
func (h *InputHandler) HandleInput() bool {
	// Only quitting and help make sense before anything is on screen.
	if h.inputActions.GetTotalCount() == 0 {
		return h.keybindingManager.ExecuteAction("exit", h.inputActions) ||
			h.keybindingManager.ExecuteAction("help", h.inputActions)
	}

	inputProcessed := false
	for _, action := range config.Actions {
		if h.keybindingManager.ExecuteAction(action.Name, h.inputActions) {
			inputProcessed = true
			continue
		}
		if h.mousebindingManager.ExecuteAction(action.Name, h.inputActions) {
			inputProcessed = true
		}
	}

	return inputProcessed
}

// modifiers are the modifier keys a binding requires. Bindings match only
// when exactly these are held.
type modifiers struct {
	Shift, Ctrl, Alt bool
}

// splitCombo separates "Shift+Ctrl+KeyB" into its modifiers and the final
// key or button name.
func splitCombo(combo string) (modifiers, string) {
	parts := strings.Split(combo, "+")
	var m modifiers
	for _, p := range parts[:len(parts)-1] {
		switch strings.ToLower(p) {
		case "shift":
			m.Shift = true
		case "ctrl":
			m.Ctrl = true
		case "alt":
			m.Alt = true
		}
	}
	return m, parts[len(parts)-1]
}

func (m modifiers) held() bool {
	return m == modifiers{
		Shift: ebiten.IsKeyPressed(ebiten.KeyShift),
		Ctrl:  ebiten.IsKeyPressed(ebiten.KeyControl),
		Alt:   ebiten.IsKeyPressed(ebiten.KeyAlt),
	}
}
