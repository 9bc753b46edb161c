package config

// Action is one bindable command with its default key and mouse bindings.
type Action struct {
	Name        string
	Keys        []string
	Mouse       []string
	Description string
}

// Actions lists every action in help order.
var Actions = []Action{
	{"exit", []string{"Escape", "KeyQ"}, nil, "Quit"},
	{"help", []string{"Shift+Slash"}, []string{"Alt+RightClick"}, "Show/hide help"},
	{"info", []string{"KeyI"}, nil, "Show/hide position and zoom"},
	{"next", []string{"Space", "PageDown", "KeyN"}, []string{"LeftClick"}, "Next page"},
	{"previous", []string{"Backspace", "PageUp", "KeyP"}, []string{"RightClick"}, "Previous page"},
	{"next_single", []string{"Shift+Space", "Shift+KeyN"}, []string{"Shift+LeftClick"}, "Forward one image"},
	{"previous_single", []string{"Shift+Backspace", "Shift+KeyP"}, []string{"Shift+RightClick"}, "Back one image"},
	{"jump_first", []string{"Home", "Shift+Comma"}, nil, "First page"},
	{"jump_last", []string{"End", "Shift+Period"}, nil, "Last page"},
	{"toggle_reading_direction", []string{"Shift+KeyB"}, []string{"Ctrl+MiddleClick"}, "Toggle reading direction (LTR / RTL)"},
	{"rotate", []string{"KeyR"}, nil, "Rotate images 90 degrees"},
	{"cycle_columns", []string{"KeyC"}, []string{"MiddleClick"}, "Cycle 1-4 columns"},
	{"columns_1", []string{"Key1"}, nil, "One column"},
	{"columns_2", []string{"Key2"}, nil, "Two columns"},
	{"columns_3", []string{"Key3"}, nil, "Three columns"},
	{"columns_4", []string{"Key4"}, nil, "Four columns"},
	{"cycle_interpolation", []string{"Shift+KeyI"}, nil, "Cycle scaling quality"},
	{"fullscreen", []string{"Enter", "KeyF"}, []string{"DoubleLeftClick"}, "Toggle fullscreen"},

	{"zoom_in", []string{"Equal", "Shift+Equal"}, []string{"Ctrl+WheelUp"}, "Zoom in"},
	{"zoom_out", []string{"Minus"}, []string{"Ctrl+WheelDown"}, "Zoom out"},
	{"zoom_reset", []string{"Key0"}, []string{"Shift+MiddleClick"}, "Reset zoom"},

	// Panning turns the page once the view is at the edge.
	{"pan_up", []string{"ArrowUp", "KeyK"}, []string{"WheelUp"}, "Pan up, else previous page"},
	{"pan_down", []string{"ArrowDown", "KeyJ"}, []string{"WheelDown"}, "Pan down, else next page"},
	{"pan_left", []string{"ArrowLeft", "KeyH"}, []string{"WheelLeft"}, "Pan left, else turn page"},
	{"pan_right", []string{"ArrowRight", "KeyL"}, []string{"WheelRight"}, "Pan right, else turn page"},
}

// DefaultKeybindings maps every action to its default keys.
func DefaultKeybindings() map[string][]string {
	m := make(map[string][]string, len(Actions))
	for _, a := range Actions {
		m[a.Name] = append([]string(nil), a.Keys...)
	}
	return m
}

// DefaultMousebindings maps actions to their default mouse bindings.
func DefaultMousebindings() map[string][]string {
	m := make(map[string][]string)
	for _, a := range Actions {
		if len(a.Mouse) > 0 {
			m[a.Name] = append([]string(nil), a.Mouse...)
		}
	}
	return m
}

// ActionDescriptions maps action names to their help text.
func ActionDescriptions() map[string]string {
	m := make(map[string]string, len(Actions))
	for _, a := range Actions {
		m[a.Name] = a.Description
	}
	return m
}
