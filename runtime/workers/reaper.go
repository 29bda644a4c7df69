package workers

import (
	"context"
	"log/slog"
	"time"
)

// StaleSweeper drops every connection not seen since before.
type StaleSweeper interface {
	ReapStale(before time.Time) int
}

// ReaperWorker periodically disconnects connections whose peer stopped
// answering. The gateway refreshes liveness on every frame and pong, so a
// connection is only reaped after livenessTimeout of complete silence.
type ReaperWorker struct {
	log             *slog.Logger
	sweeper         StaleSweeper
	interval        time.Duration
	livenessTimeout time.Duration
	now             func() time.Time
}

func NewReaperWorker(log *slog.Logger, sweeper StaleSweeper, interval, livenessTimeout time.Duration) *ReaperWorker {
	return &ReaperWorker{
		log:             log,
		sweeper:         sweeper,
		interval:        interval,
		livenessTimeout: livenessTimeout,
		now:             time.Now,
	}
}

func (w *ReaperWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping reaper")
			return nil
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *ReaperWorker) sweep() int {
	reaped := w.sweeper.ReapStale(w.now().Add(-w.livenessTimeout))
	if reaped > 0 {
		w.log.Info("Stale connections reaped", "count", reaped)
	}
	return reaped
}
