package config

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"filmstrip/internal/archive"
	"filmstrip/internal/navigation"
	"filmstrip/internal/render"
)

// ErrUsage is returned for command lines that cannot be run.
var ErrUsage = errors.New("usage error")

// Args is the parsed command line.
type Args struct {
	Config Config
	Paths  []string
	Debug  bool
}

// ParseArgs applies command line options on top of cfg. pflag.ErrHelp is
// returned as is for -h.
func ParseArgs(args []string, cfg Config, usage io.Writer) (Args, error) {
	fs := pflag.NewFlagSet("filmstrip", pflag.ContinueOnError)
	fs.SetOutput(usage)
	fs.Usage = func() {
		fmt.Fprintf(usage, "Usage: filmstrip [options] <directory|archive|image>...\n\nOptions:\n")
		fs.PrintDefaults()
		suffixes := cfg.Registry().Suffixes()
		slices.Sort(suffixes)
		fmt.Fprintf(usage, "\nArchives: %s\n", strings.Join(suffixes, " "))
	}

	columns := fs.IntP("columns", "c", cfg.Columns, "number of images shown side by side (1-4)")
	rtl := fs.BoolP("rtl", "r", false, "read right to left")
	ltr := fs.BoolP("ltr", "l", false, "read left to right")
	cache := fs.Int("cache", cfg.CacheSize, "number of decoded images kept in memory")
	interp := fs.String("interpolation", cfg.Interpolation, "scaling: nearest, approx-bilinear, bilinear or catmull-rom")
	unpacker := fs.String("unpacker", cfg.Unpacker, "archive handling: builtin or command")
	debug := fs.BoolP("debug", "d", cfg.Debug, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Args{}, err
		}
		return Args{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	if *columns < navigation.MinColumns || *columns > navigation.MaxColumns {
		return Args{}, fmt.Errorf("%w: %w", ErrUsage, navigation.ErrInvalidColumns)
	}
	if *rtl && *ltr {
		return Args{}, fmt.Errorf("%w: -rtl and -ltr are exclusive", ErrUsage)
	}
	if *cache < 1 || *cache > maxCacheSize {
		return Args{}, fmt.Errorf("%w: cache must be between 1 and %d", ErrUsage, maxCacheSize)
	}
	if _, err := render.ParseInterpolation(*interp); err != nil {
		return Args{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if m := archive.Mode(*unpacker); m != archive.ModeBuiltin && m != archive.ModeCommand {
		return Args{}, fmt.Errorf("%w: unknown unpacker %q", ErrUsage, *unpacker)
	}
	if fs.NArg() == 0 {
		return Args{}, fmt.Errorf("%w: no sources given", ErrUsage)
	}

	cfg.Columns = *columns
	switch {
	case *rtl:
		cfg.RightToLeft = true
	case *ltr:
		cfg.RightToLeft = false
	}
	cfg.CacheSize = *cache
	cfg.Interpolation = *interp
	cfg.Unpacker = *unpacker
	cfg.Debug = *debug

	return Args{Config: cfg, Paths: fs.Args(), Debug: *debug}, nil
}
