// Package config loads ~/.filmstrip.json and the command line.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"filmstrip/internal/archive"
	"filmstrip/internal/navigation"
	"filmstrip/internal/render"
)

// Window size constants
const (
	DefaultWidth  = 1200
	DefaultHeight = 800
	MinWidth      = 400
	MinHeight     = 300
)

const (
	defaultCacheSize      = 16
	maxCacheSize          = 64
	maxSpacing            = 100
	maxPreloadDelayMs     = 2000
	maxPreloadWorkers     = 8
	defaultHelpFontSize   = 24.0
	defaultDoubleClickMs  = 300
	defaultPreloadDelayMs = 150
)

// Load status values.
const (
	StatusOK      = "OK"
	StatusDefault = "Default"
	StatusWarning = "Warning"
	StatusError   = "Error"
)

// DefaultExtensions are the image formats the viewer decodes.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tif", ".tiff"}

type Config struct {
	WindowWidth    int                 `mapstructure:"window_width" json:"window_width"`
	WindowHeight   int                 `mapstructure:"window_height" json:"window_height"`
	Fullscreen     bool                `mapstructure:"fullscreen" json:"fullscreen"`
	Columns        int                 `mapstructure:"columns" json:"columns"`
	RightToLeft    bool                `mapstructure:"right_to_left" json:"right_to_left"`
	Spacing        int                 `mapstructure:"spacing" json:"spacing"`
	CacheSize      int                 `mapstructure:"cache_size" json:"cache_size"`
	PreloadDelayMs int                 `mapstructure:"preload_delay_ms" json:"preload_delay_ms"`
	PreloadWorkers int                 `mapstructure:"preload_workers" json:"preload_workers"`
	Interpolation  string              `mapstructure:"interpolation" json:"interpolation"`
	Unpacker       string              `mapstructure:"unpacker" json:"unpacker"`
	UnpackCommand  []string            `mapstructure:"unpack_command" json:"unpack_command"`
	ZipEncoding    string              `mapstructure:"zip_encoding" json:"zip_encoding"`
	Extensions     []string            `mapstructure:"extensions" json:"extensions"`
	HelpFontSize   float64             `mapstructure:"help_font_size" json:"help_font_size"`
	Debug          bool                `mapstructure:"debug" json:"debug"`
	EnableMouse    bool                `mapstructure:"enable_mouse" json:"enable_mouse"`
	WheelInverted  bool                `mapstructure:"wheel_inverted" json:"wheel_inverted"`
	DoubleClickMs  int                 `mapstructure:"double_click_ms" json:"double_click_ms"`
	Keybindings    map[string][]string `mapstructure:"keybindings" json:"keybindings"`
	Mousebindings  map[string][]string `mapstructure:"mousebindings" json:"mousebindings"`
}

// LoadResult contains the result of loading configuration.
type LoadResult struct {
	Config   Config
	HasError bool
	Warnings []string
	Status   string
}

// Default returns the configuration used when there is no file.
func Default() Config {
	return Config{
		WindowWidth:    DefaultWidth,
		WindowHeight:   DefaultHeight,
		Columns:        2,
		Spacing:        4,
		CacheSize:      defaultCacheSize,
		PreloadDelayMs: defaultPreloadDelayMs,
		PreloadWorkers: navigation.DefaultPreloadWorkers,
		Interpolation:  render.BiLinear.String(),
		Unpacker:       string(archive.ModeBuiltin),
		UnpackCommand:  append([]string(nil), archive.DefaultCommand...),
		ZipEncoding:    "shift_jis",
		Extensions:     append([]string(nil), DefaultExtensions...),
		HelpFontSize:   defaultHelpFontSize,
		EnableMouse:    true,
		DoubleClickMs:  defaultDoubleClickMs,
		Keybindings:    DefaultKeybindings(),
		Mousebindings:  DefaultMousebindings(),
	}
}

// Path returns $FILMSTRIP_CONFIG, or ~/.filmstrip.json.
func Path() string {
	if p := os.Getenv("FILMSTRIP_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "filmstrip.json"
	}
	return filepath.Join(home, ".filmstrip.json")
}

// Load reads the configuration from Path.
func Load() LoadResult {
	return LoadFrom(Path())
}

// LoadFrom reads path, applies FILMSTRIP_* environment overrides and clamps
// every value into range. A missing file is not an error; a broken one
// falls back to the defaults.
func LoadFrom(path string) LoadResult {
	v := newViper(true)
	v.SetConfigFile(path)

	result := LoadResult{Status: StatusOK}
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			result.Status = StatusDefault
		} else {
			log.Warn().Err(err).Str("path", path).Msg("invalid config file, using defaults")
			result.HasError = true
			result.Status = StatusError
			result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid config file: %v", err))
			v = newViper(true)
		}
	}

	// Defaults live in viper; decoding over a prefilled struct would merge
	// slices element by element.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("cannot decode config, using defaults")
		result.HasError = true
		result.Status = StatusError
		result.Warnings = append(result.Warnings, fmt.Sprintf("Invalid config values: %v", err))
		cfg = Default()
	}

	for _, w := range cfg.validate() {
		if result.Status == StatusOK || result.Status == StatusDefault {
			result.Status = StatusWarning
		}
		result.Warnings = append(result.Warnings, w)
	}
	result.Config = cfg
	return result
}

// newViper returns a viper holding the defaults. With env set, FILMSTRIP_*
// variables override the file.
func newViper(env bool) *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	if env {
		v.SetEnvPrefix("FILMSTRIP")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	d := Default()
	v.SetDefault("window_width", d.WindowWidth)
	v.SetDefault("window_height", d.WindowHeight)
	v.SetDefault("fullscreen", d.Fullscreen)
	v.SetDefault("columns", d.Columns)
	v.SetDefault("right_to_left", d.RightToLeft)
	v.SetDefault("spacing", d.Spacing)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("preload_delay_ms", d.PreloadDelayMs)
	v.SetDefault("preload_workers", d.PreloadWorkers)
	v.SetDefault("interpolation", d.Interpolation)
	v.SetDefault("unpacker", d.Unpacker)
	v.SetDefault("unpack_command", d.UnpackCommand)
	v.SetDefault("zip_encoding", d.ZipEncoding)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("help_font_size", d.HelpFontSize)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("enable_mouse", d.EnableMouse)
	v.SetDefault("wheel_inverted", d.WheelInverted)
	v.SetDefault("double_click_ms", d.DoubleClickMs)
	return v
}

// validate clamps out-of-range values and returns warnings for settings it
// had to replace.
func (c *Config) validate() []string {
	var warnings []string

	if c.WindowWidth < MinWidth {
		c.WindowWidth = DefaultWidth
	}
	if c.WindowHeight < MinHeight {
		c.WindowHeight = DefaultHeight
	}

	if c.Columns < navigation.MinColumns || c.Columns > navigation.MaxColumns {
		warnings = append(warnings, fmt.Sprintf("columns %d out of range 1-4, using 1", c.Columns))
		c.Columns = navigation.MinColumns
	}

	c.Spacing = min(max(c.Spacing, 0), maxSpacing)

	if c.CacheSize < 1 {
		c.CacheSize = defaultCacheSize
	} else if c.CacheSize > maxCacheSize {
		c.CacheSize = maxCacheSize
	}

	c.PreloadDelayMs = min(max(c.PreloadDelayMs, 0), maxPreloadDelayMs)
	if c.PreloadWorkers < 1 {
		c.PreloadWorkers = navigation.DefaultPreloadWorkers
	} else if c.PreloadWorkers > maxPreloadWorkers {
		c.PreloadWorkers = maxPreloadWorkers
	}

	if _, err := render.ParseInterpolation(c.Interpolation); err != nil {
		warnings = append(warnings, err.Error())
		c.Interpolation = render.BiLinear.String()
	}

	switch archive.Mode(c.Unpacker) {
	case archive.ModeBuiltin, archive.ModeCommand:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown unpacker %q, using builtin", c.Unpacker))
		c.Unpacker = string(archive.ModeBuiltin)
	}
	if len(c.UnpackCommand) == 0 {
		c.UnpackCommand = append([]string(nil), archive.DefaultCommand...)
	}

	if c.ZipEncoding != "" {
		if _, err := archive.EncodingByName(c.ZipEncoding); err != nil {
			warnings = append(warnings, err.Error())
			c.ZipEncoding = ""
		}
	}

	if len(c.Extensions) == 0 {
		c.Extensions = append([]string(nil), DefaultExtensions...)
	}

	if c.HelpFontSize <= 12.0 {
		c.HelpFontSize = defaultHelpFontSize
	}
	if c.DoubleClickMs <= 0 {
		c.DoubleClickMs = defaultDoubleClickMs
	}

	warnings = append(warnings, fillBindings(&c.Keybindings, DefaultKeybindings(), KeyNames, "Keybinding")...)
	warnings = append(warnings, fillBindings(&c.Mousebindings, DefaultMousebindings(), MouseNames, "Mousebinding")...)
	return warnings
}

// fillBindings adds defaults for unbound actions and replaces the whole map
// with the defaults when it does not validate.
func fillBindings(bindings *map[string][]string, defaults map[string][]string, names map[string]bool, kind string) []string {
	if *bindings == nil {
		*bindings = defaults
		return nil
	}
	for action, combos := range defaults {
		if _, ok := (*bindings)[action]; !ok {
			(*bindings)[action] = combos
		}
	}
	if err := ValidateBindings(*bindings, names); err != nil {
		log.Warn().Err(err).Msg("invalid bindings, using defaults")
		*bindings = defaults
		return []string{fmt.Sprintf("%s errors: %v", kind, err)}
	}
	return nil
}

// Session is what a viewing session writes back to the config file.
type Session struct {
	WindowWidth, WindowHeight int
	Fullscreen                bool
	// Interpolation is saved only when set.
	Interpolation string
}

// SaveSession records s in the file at Path.
func SaveSession(s Session) error {
	return SaveSessionTo(Path(), s)
}

// SaveSessionTo rereads the file at path, ignoring the environment, and
// replaces only the fields of s. Command line options and FILMSTRIP_*
// overrides of the running session never reach the file. A file that cannot
// be parsed is left alone.
func SaveSessionTo(path string, s Session) error {
	v := newViper(false)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("not overwriting unreadable config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("not overwriting undecodable config %s: %w", path, err)
	}
	cfg.validate()

	cfg.WindowWidth, cfg.WindowHeight = s.WindowWidth, s.WindowHeight
	cfg.Fullscreen = s.Fullscreen
	if s.Interpolation != "" {
		cfg.Interpolation = s.Interpolation
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg as indented JSON. A window smaller than the minimum is
// never saved.
func SaveTo(cfg Config, path string) error {
	if cfg.WindowWidth < MinWidth || cfg.WindowHeight < MinHeight {
		return fmt.Errorf("not saving invalid window size %dx%d", cfg.WindowWidth, cfg.WindowHeight)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("saving config to %s: %w", path, err)
	}
	return nil
}

// Registry builds the archive registry the configuration asks for.
func (c Config) Registry() *archive.Registry {
	opts := archive.Options{Mode: archive.Mode(c.Unpacker), Command: c.UnpackCommand}
	if enc, err := archive.EncodingByName(c.ZipEncoding); err == nil {
		opts.ZipEncoding = enc
	}
	return archive.NewDefaultRegistry(opts)
}

// InterpolationMode returns the parsed interpolation setting.
func (c Config) InterpolationMode() render.Interpolation {
	mode, err := render.ParseInterpolation(c.Interpolation)
	if err != nil {
		return render.BiLinear
	}
	return mode
}
