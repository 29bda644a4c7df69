package workers

import (
	"chat-fanout/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticPresence struct {
	stats domain.PresenceStats
}

func (s staticPresence) Stats() domain.PresenceStats { return s.stats }

func TestHealthWorker_PublishesPresence(t *testing.T) {
	req := require.New(t)

	// Given a health worker over fixed presence counters
	presence := staticPresence{stats: domain.PresenceStats{OnlineUsers: 2, Connections: 3, Rooms: 4}}
	reports := make(chan HealthReport, 8)
	w := NewHealthWorker(slog.Default(), presence, 10*time.Millisecond).
		OnReport(func(r HealthReport) {
			select {
			case reports <- r:
			default:
			}
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// When the first report is published
	var report HealthReport
	select {
	case report = <-reports:
	case <-time.After(2 * time.Second):
		req.FailNow("No health report published")
	}

	// Then it carries the presence counters and is kept as the last one
	req.Equal(presence.stats, report.Presence)
	req.False(report.CheckedAt.IsZero())
	req.Equal(presence.stats, w.Last().Presence)
}
