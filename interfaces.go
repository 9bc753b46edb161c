package main

import (
	"time"

	"filmstrip/internal/config"
	"filmstrip/internal/navigation"
)

const (
	// Overlay message display duration
	overlayMessageDuration = 2 * time.Second
)

// RenderState provides read-only access to game state for the renderer
type RenderState interface {
	// Loading phase
	IsLoading() bool
	GetLoadingStatus() string

	// Rendering data
	GetPlacements(width, height int) []navigation.Placement
	GetEmptyMessage() string

	// UI state
	IsShowingHelp() bool
	IsShowingInfo() bool
	GetInfoText() string
	GetOverlayMessage() string
	GetOverlayMessageTime() time.Time

	// Display data
	GetFontSize() float64
	GetConfigStatus() config.LoadResult
	GetKeybindings() map[string][]string
	GetMousebindings() map[string][]string
}

// InputActions provides action methods for the input handler
type InputActions interface {
	// Application control
	Exit()

	// Display toggles
	ToggleHelp()
	ToggleInfo()
	ToggleFullscreen()

	// Navigation
	NavigateNext()
	NavigatePrevious()
	NavigateNextSingle()
	NavigatePreviousSingle()
	JumpFirst()
	JumpLast()

	// Layout
	ToggleReadingDirection()
	ToggleRotation()
	SetColumns(n int)
	CycleColumns()
	CycleInterpolation()

	// Zoom and pan actions
	ZoomIn()
	ZoomOut()
	ZoomReset()
	PanOrPage(dx, dy int)

	// Messages
	ShowOverlayMessage(message string)

	// Common data access
	GetTotalCount() int
}
