package workers

import (
	"chat-fanout/domain"
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// PresenceReporter exposes live presence counters.
type PresenceReporter interface {
	Stats() domain.PresenceStats
}

type HealthReport struct {
	Presence  domain.PresenceStats
	CPU       float64
	RAM       float32
	CheckedAt time.Time
	Healthy   bool
}

// HealthWorker samples the process resource usage together with presence
// counters and hands every report to the registered listeners.
type HealthWorker struct {
	mu        sync.RWMutex
	log       *slog.Logger
	presence  PresenceReporter
	interval  time.Duration
	last      HealthReport
	listeners []func(HealthReport)
}

func NewHealthWorker(log *slog.Logger, presence PresenceReporter, interval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, presence: presence, interval: interval}
}

// OnReport must be called before Run.
func (w *HealthWorker) OnReport(listener func(HealthReport)) *HealthWorker {
	w.listeners = append(w.listeners, listener)
	return w
}

func (w *HealthWorker) Last() HealthReport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

func (w *HealthWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health reports")
			return nil
		case <-ticker.C:
			w.publish(w.sample(p))
		}
	}
}

func (w *HealthWorker) sample(p *process.Process) HealthReport {
	report := HealthReport{
		Presence:  w.presence.Stats(),
		CheckedAt: time.Now().UTC(),
		Healthy:   true,
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Warn("Cannot read cpu usage", "error", err)
		report.Healthy = false
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		w.log.Warn("Cannot read ram usage", "error", err)
		report.Healthy = false
	}
	report.CPU, report.RAM = cpu, ram
	return report
}

func (w *HealthWorker) publish(report HealthReport) {
	w.mu.Lock()
	w.last = report
	w.mu.Unlock()

	w.log.Debug("Health report",
		"online_users", report.Presence.OnlineUsers,
		"connections", report.Presence.Connections,
		"rooms", report.Presence.Rooms,
		"cpu", report.CPU,
		"ram", report.RAM)
	for _, listener := range w.listeners {
		listener(report)
	}
}
