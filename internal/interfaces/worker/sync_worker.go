package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"mailfootprint/internal/domain/email"
)

type SyncRunner interface {
	RequestSync(ctx context.Context) email.SyncResponse
}

type SyncJob struct {
	reply chan email.SyncResponse
}

// Pool runs sync requests one at a time so no two runs overlap. Callers
// block until their run completes.
type Pool struct {
	jobs   chan SyncJob
	runner SyncRunner
	logger zerolog.Logger
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func NewPool(runner SyncRunner, queueSize int, logger zerolog.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		jobs:   make(chan SyncJob, queueSize),
		runner: runner,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.worker(ctx)
	p.logger.Info().Msg("sync worker started")
}

// Submit queues a sync and waits for its response. A full queue is
// reported as a retryable busy response.
func (p *Pool) Submit(ctx context.Context) (email.SyncResponse, error) {
	job := SyncJob{reply: make(chan email.SyncResponse, 1)}

	select {
	case <-p.done:
		return email.SyncResponse{}, fmt.Errorf("sync worker stopped")
	default:
	}

	select {
	case p.jobs <- job:
	default:
		return email.ResponseFor(fmt.Errorf("%w: sync queue full", email.ErrBusy)), nil
	}

	select {
	case resp := <-job.reply:
		return resp, nil
	case <-ctx.Done():
		return email.SyncResponse{}, ctx.Err()
	case <-p.done:
		return email.SyncResponse{}, fmt.Errorf("sync worker stopped")
	}
}

func (p *Pool) Shutdown() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
	p.logger.Info().Msg("sync worker shut down")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case job := <-p.jobs:
			resp := p.runner.RequestSync(ctx)
			if resp.Status != email.StatusOK {
				p.logger.Error().Str("detail", resp.Detail).Bool("retryable", resp.Retryable).Msg("sync request failed")
			}
			job.reply <- resp
		}
	}
}
