package main

// ActionExecutor maps action names to InputActions calls. Keyboard and mouse
// bindings both dispatch through it.
type ActionExecutor struct{}

// NewActionExecutor creates a new ActionExecutor instance
func NewActionExecutor() *ActionExecutor {
	return &ActionExecutor{}
}

// ExecuteAction runs action and reports whether the name was known.
func (ae *ActionExecutor) ExecuteAction(action string, inputActions InputActions) bool {
	switch action {
	case "exit":
		inputActions.Exit()
	case "help":
		inputActions.ToggleHelp()
	case "info":
		inputActions.ToggleInfo()
	case "fullscreen":
		inputActions.ToggleFullscreen()

	case "next":
		inputActions.NavigateNext()
	case "previous":
		inputActions.NavigatePrevious()
	case "next_single":
		inputActions.NavigateNextSingle()
	case "previous_single":
		inputActions.NavigatePreviousSingle()
	case "jump_first":
		inputActions.JumpFirst()
	case "jump_last":
		inputActions.JumpLast()

	case "toggle_reading_direction":
		inputActions.ToggleReadingDirection()
	case "rotate":
		inputActions.ToggleRotation()
	case "cycle_columns":
		inputActions.CycleColumns()
	case "columns_1":
		inputActions.SetColumns(1)
	case "columns_2":
		inputActions.SetColumns(2)
	case "columns_3":
		inputActions.SetColumns(3)
	case "columns_4":
		inputActions.SetColumns(4)
	case "cycle_interpolation":
		inputActions.CycleInterpolation()

	case "zoom_in":
		inputActions.ZoomIn()
	case "zoom_out":
		inputActions.ZoomOut()
	case "zoom_reset":
		inputActions.ZoomReset()
	case "pan_up":
		inputActions.PanOrPage(0, -1)
	case "pan_down":
		inputActions.PanOrPage(0, 1)
	case "pan_left":
		inputActions.PanOrPage(-1, 0)
	case "pan_right":
		inputActions.PanOrPage(1, 0)

	default:
		return false
	}

	return true
}

// globalActionExecutor is the global instance of ActionExecutor used throughout the application
var globalActionExecutor = NewActionExecutor()
