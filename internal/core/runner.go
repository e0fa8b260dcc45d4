package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Runner executes work detached from the HTTP request that triggered it.
// It provides no queueing or concurrency limiting; for backups the
// at-most-one-pending guard at the data layer is the only concurrency
// control. Errors and panics are contained at the task boundary; by the
// time a task runs, its request has already been answered.
type Runner struct {
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Go runs fn on its own goroutine. A panic or returned error is logged and
// goes no further; fn itself is responsible for any cleanup (the backup
// export routes both into failure-cleanup).
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error().Str("task", name).Any("panic", p).Msg("background task panicked")
			}
		}()

		if err := fn(context.Background()); err != nil {
			r.logger.Error().Str("task", name).Err(err).Msg("background task failed")
		}
	}()
}

// Wait blocks until all in-flight tasks finish. Used on shutdown and in
// tests that need a deterministic point after the background phase.
func (r *Runner) Wait() {
	r.wg.Wait()
}
