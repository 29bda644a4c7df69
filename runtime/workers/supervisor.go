package workers

import (
	"chat-fanout/contract"
	"chat-fanout/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultRestartInterval = 200 * time.Millisecond

var _ contract.ISupervisor = (*Supervisor)(nil)

// Supervisor runs background workers of the engine (liveness reaper, health
// reporter) each in its own goroutine.
// A worker returning an error or panicking is restarted after restartInterval.
// A worker returning nil is considered done and never restarted.
// Run returns once every worker has exited.
type Supervisor struct {
	log             *slog.Logger
	restartInterval time.Duration
	wg              sync.WaitGroup
	mu              sync.Mutex
	cancel          context.CancelFunc
	stopped         bool
	workers         []contract.Worker
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = defaultRestartInterval
	}
	return &Supervisor{log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker...)
	return s
}

// Run blocks until ctx is canceled or Stop is called and all workers returned.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	workers := append([]contract.Worker(nil), s.workers...)
	s.mu.Unlock()

	for _, worker := range workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start supervises one worker until ctx is done.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	name := contract.GetWorkerName(worker)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		for {
			if ctx.Err() != nil {
				s.log.Debug("Worker not started, context done", "worker", name)
				return
			}

			err := s.runOnce(ctx, worker)
			switch {
			case err == nil:
				s.log.Info("Worker finished", "worker", name)
				return
			case ctx.Err() != nil:
				s.log.Info("Worker stopped", "worker", name)
				return
			}

			s.log.Warn("Worker failed, restarting", "worker", name, "error", err,
				"restart_in", s.restartInterval)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

func (s *Supervisor) runOnce(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels every supervised worker, including a Run not started yet.
// Run returns once they all exited.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}
