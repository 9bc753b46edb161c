package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"filmstrip/internal/bookmark"
	"filmstrip/internal/config"
)

// debugLog writes a printf style message at debug level.
func debugLog(format string, args ...interface{}) {
	log.Debug().Msgf(format, args...)
}

// setupLogging sends human readable logs to stderr. FILMSTRIP_DEBUG or
// -d turns on debug messages.
func setupLogging(debug bool) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug || os.Getenv("FILMSTRIP_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	setupLogging(false)

	loaded := config.Load()
	args, err := config.ParseArgs(argv, loaded.Config, os.Stderr)
	switch {
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case err != nil:
		fmt.Fprintf(os.Stderr, "filmstrip: %v\n", err)
		return 2
	}
	cfg := args.Config
	setupLogging(args.Debug)
	for _, w := range loaded.Warnings {
		log.Warn().Str("path", config.Path()).Msg(w)
	}

	bookmarks, err := bookmark.Open(afero.NewOsFs(), bookmark.DefaultPath())
	if err != nil {
		log.Warn().Err(err).Msg("ignoring bookmarks")
	} else if n := bookmarks.Skipped(); n > 0 {
		log.Warn().Int("lines", n).Msg("skipped malformed bookmark lines")
	}

	g := NewGame(cfg, loaded, args.Paths, bookmarks)
	g.renderer, err = NewRenderer(g)
	if err != nil {
		log.Error().Err(err).Msg("cannot create renderer")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	ebiten.SetWindowTitle("filmstrip")
	ebiten.SetWindowSize(cfg.WindowWidth, cfg.WindowHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	if cfg.Fullscreen {
		g.savedWinW, g.savedWinH = cfg.WindowWidth, cfg.WindowHeight
		ebiten.SetFullscreen(true)
	}

	err = ebiten.RunGame(g)
	g.Shutdown()
	if err != nil && !errors.Is(err, ebiten.Termination) {
		log.Error().Err(err).Msg("viewer stopped")
		return 1
	}
	return 0
}
