package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

// ErrPanic is returned by a Loader whose build panicked.
var ErrPanic = errors.New("collection build panicked")

const progressBuffer = 32

// Result is the single handoff of a finished build.
type Result struct {
	Collection *Collection
	Err        error
}

// Loader runs Build on its own goroutine. Nothing may read the collection
// before it is received from Result.
type Loader struct {
	progress chan Progress
	result   chan Result
	cancel   context.CancelFunc
}

// Load starts building a collection in the background.
func Load(ctx context.Context, roots []string, opts Options) *Loader {
	ctx, cancel := context.WithCancel(ctx)
	l := &Loader{
		progress: make(chan Progress, progressBuffer),
		result:   make(chan Result, 1),
		cancel:   cancel,
	}
	opts.Progress = l.progress

	go l.run(ctx, roots, opts)
	return l
}

func (l *Loader) run(ctx context.Context, roots []string, opts Options) {
	defer l.cancel()

	var res Result
	var pc panics.Catcher
	pc.Try(func() {
		res.Collection, res.Err = Build(ctx, roots, opts)
	})
	if r := pc.Recovered(); r != nil {
		log.Error().Str("stack", string(r.Stack)).Msg("collection build panicked")
		res = Result{Err: fmt.Errorf("%w: %v", ErrPanic, r.Value)}
	}

	close(l.progress)
	l.result <- res
	close(l.result)
}

// Progress is closed when the build finishes.
func (l *Loader) Progress() <-chan Progress {
	return l.progress
}

// Result delivers exactly one Result.
func (l *Loader) Result() <-chan Result {
	return l.result
}

// Wait blocks until the build finishes.
func (l *Loader) Wait() (*Collection, error) {
	res := <-l.result
	return res.Collection, res.Err
}

// Cancel stops the build; Wait then returns the context error.
func (l *Loader) Cancel() {
	l.cancel()
}
