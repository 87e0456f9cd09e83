package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mailfootprint/internal/domain/email"
)

type Task func(ctx context.Context) error

type State int

const (
	Stopped State = iota
	Waiting
	Running
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

var ErrAlreadyStarted = errors.New("scheduler already started")

const DefaultRetryDelay = time.Minute

// Runner executes a task on a schedule until stopped. Runs never overlap:
// the next activation is armed only after the previous run returns.
type Runner struct {
	name     string
	schedule Schedule
	task     Task
	logger   zerolog.Logger

	Clock    func() time.Time
	NewTimer func(d time.Duration) (<-chan time.Time, func() bool)

	// Retryable failures are retried up to MaxRetries times before the
	// next activation is armed.
	Retryable  func(error) bool
	RetryDelay time.Duration
	MaxRetries int

	mu     sync.Mutex
	state  State
	armed  time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(name string, schedule Schedule, task Task, logger zerolog.Logger) *Runner {
	return &Runner{
		name:       name,
		schedule:   schedule,
		task:       task,
		logger:     logger.With().Str("schedule", name).Logger(),
		Clock:      time.Now,
		NewTimer:   realTimer,
		Retryable:  email.IsRetryable,
		RetryDelay: DefaultRetryDelay,
		MaxRetries: 1,
	}
}

func realTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = Waiting

	go r.loop(ctx, r.done)
	return nil
}

// Stop cancels a pending activation or an in-flight run and waits for the
// loop to exit. The runner can be started again afterwards.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done

	r.mu.Lock()
	r.state = Stopped
	r.armed = time.Time{}
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Armed is the next activation, zero when stopped.
func (r *Runner) Armed() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

func (r *Runner) set(state State, armed time.Time) {
	r.mu.Lock()
	r.state = state
	r.armed = armed
	r.mu.Unlock()
}

func (r *Runner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	target := r.schedule.Next(r.Clock())
	for {
		r.set(Waiting, target)
		r.logger.Info().Time("at", target).Msg("next run armed")

		wait := target.Sub(r.Clock())
		if wait < 0 {
			wait = 0
		}
		fire, stop := r.NewTimer(wait)

		select {
		case <-ctx.Done():
			stop()
			return
		case <-fire:
		}

		r.set(Running, target)
		r.run(ctx)

		if ctx.Err() != nil {
			return
		}

		next := r.schedule.Next(target)
		if now := r.Clock(); !next.After(now) {
			next = r.schedule.Next(now)
		}
		target = next
	}
}

// run executes the task, retrying after RetryDelay while the error is
// retryable and fewer than MaxRetries retries were made.
func (r *Runner) run(ctx context.Context) {
	r.logger.Info().Msg("run started")
	for attempt := 0; ; attempt++ {
		err := r.task(ctx)
		if err == nil {
			r.logger.Info().Msg("run finished")
			return
		}
		if ctx.Err() != nil || attempt >= r.MaxRetries || r.Retryable == nil || !r.Retryable(err) {
			r.logger.Error().Err(err).Int("attempt", attempt+1).Msg("run failed")
			return
		}

		r.logger.Warn().Err(err).Dur("retry_in", r.RetryDelay).Msg("run failed, retrying")
		fire, stop := r.NewTimer(r.RetryDelay)
		select {
		case <-ctx.Done():
			stop()
			return
		case <-fire:
		}
	}
}
