package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TaskFunc is a unit of post-acknowledgement work.
type TaskFunc func(ctx context.Context) error

type taskError struct {
	id   string
	name string
	err  error
}

// Dispatcher runs detached tasks that outlive the request that scheduled them.
// Task failures have no caller to report to; they end in the log sink.
type Dispatcher struct {
	timeout time.Duration
	logger  zerolog.Logger

	baseCtx    context.Context
	cancelFunc context.CancelFunc
	waitGroup  *sync.WaitGroup
	errs       chan taskError
	sinkDone   chan struct{}

	mu      sync.Mutex
	stopped bool
}

func NewDispatcher(timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		timeout:    timeout,
		logger:     logger.With().Str("component", "dispatcher").Logger(),
		baseCtx:    ctx,
		cancelFunc: cancel,
		waitGroup:  &sync.WaitGroup{},
		errs:       make(chan taskError, 64),
		sinkDone:   make(chan struct{}),
	}
	go d.sink()
	return d
}

// Go schedules fn and returns its task id immediately. It returns false when the
// dispatcher is already stopping.
func (d *Dispatcher) Go(name string, fn TaskFunc) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.logger.Warn().Str("task", name).Msg("dispatcher stopped, task dropped")
		return "", false
	}

	id := uuid.NewString()
	d.waitGroup.Add(1)
	go d.run(id, name, fn)
	return id, true
}

func (d *Dispatcher) run(id, name string, fn TaskFunc) {
	defer d.waitGroup.Done()

	ctx := d.baseCtx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := d.call(ctx, fn)
	if err != nil {
		d.errs <- taskError{id: id, name: name, err: err}
		return
	}

	d.logger.Debug().
		Str("task_id", id).
		Str("task", name).
		Dur("elapsed", time.Since(start)).
		Msg("task finished")
}

func (d *Dispatcher) call(ctx context.Context, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (d *Dispatcher) sink() {
	defer close(d.sinkDone)
	for te := range d.errs {
		d.logger.Error().
			Err(te.err).
			Str("task_id", te.id).
			Str("task", te.name).
			Msg("task failed")
	}
}

// Stop refuses new tasks and waits for running ones until ctx is done, after
// which the remaining tasks see their context cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	d.logger.Info().Msg("waiting for in-flight tasks")

	done := make(chan struct{})
	go func() {
		d.waitGroup.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		d.cancelFunc()
		<-done
		err = fmt.Errorf("dispatcher stop: %w", ctx.Err())
	}

	d.cancelFunc()
	close(d.errs)
	<-d.sinkDone
	d.logger.Info().Msg("all tasks finished")
	return err
}
