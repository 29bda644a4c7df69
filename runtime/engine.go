package runtime

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"chat-fanout/runtime/workers"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	_ contract.IEngine             = (*Engine)(nil)
	_ contract.IMembershipNotifier = (*Engine)(nil)
)

type Config struct {
	PersistTimeout   time.Duration
	DeliveryTimeout  time.Duration
	MaxContentLength int
	LivenessTimeout  time.Duration
	ReapInterval     time.Duration
	HealthInterval   time.Duration
}

// Engine is the single entry point of the gateway into live state.
// It owns the session registry and the room directory and exposes them
// only through the synchronizer and the dispatcher.
type Engine struct {
	log        *slog.Logger
	config     Config
	sessions   *SessionRegistry
	rooms      *RoomDirectory
	sync       *Synchronizer
	dispatcher *Dispatcher
	supervisor contract.ISupervisor
	health     *workers.HealthWorker
	stopped    atomic.Bool
	done       chan struct{}
	startOnce  sync.Once
	now        func() time.Time
}

func NewEngine(log *slog.Logger, store contract.IDurableStore, supervisor contract.ISupervisor, config Config) *Engine {
	sessions := NewSessionRegistry()
	rooms := NewRoomDirectory(sessions)
	e := &Engine{
		log:      log,
		config:   config,
		sessions: sessions,
		rooms:    rooms,
		sync:     NewSynchronizer(log, sessions, rooms, store, config.PersistTimeout),
		dispatcher: NewDispatcher(log, store, sessions, rooms, DispatcherConfig{
			PersistTimeout:   config.PersistTimeout,
			DeliveryTimeout:  config.DeliveryTimeout,
			MaxContentLength: config.MaxContentLength,
		}),
		supervisor: supervisor,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	if config.HealthInterval > 0 {
		e.health = workers.NewHealthWorker(log, e, config.HealthInterval)
	}
	return e
}

// WithFilter applies a content filter to every accepted message.
func (e *Engine) WithFilter(filter ContentFilter) *Engine {
	e.dispatcher.WithFilter(filter)
	return e
}

// Health returns the health worker, nil when health reports are disabled.
func (e *Engine) Health() *workers.HealthWorker {
	return e.health
}

// Start launches the background workers and returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		if e.config.ReapInterval > 0 && e.config.LivenessTimeout > 0 {
			e.supervisor.Add(workers.NewReaperWorker(e.log, e, e.config.ReapInterval, e.config.LivenessTimeout))
		}
		if e.health != nil {
			e.supervisor.Add(e.health)
		}
		go func() {
			defer close(e.done)
			e.supervisor.Run(ctx)
		}()
	})
}

// Stop refuses new connections, drops the live ones and waits for workers.
func (e *Engine) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	e.supervisor.Stop()

	for _, conn := range e.sessions.Connections() {
		e.Disconnect(conn.ID)
	}

	inTime := false
	e.startOnce.Do(func() { close(e.done) })
	select {
	case <-e.done:
		inTime = true
	case <-time.After(5 * time.Second):
		e.log.Warn("Workers did not stop in time")
	}
	e.log.Info("Engine stopped", "workers_stopped", inTime)
}

// Connect registers a new connection for an authenticated identity and
// tells the client which rooms it now receives.
func (e *Engine) Connect(ctx context.Context, userID domain.UserID, sink contract.EventSink) (domain.Connection, error) {
	if e.stopped.Load() {
		return domain.Connection{}, errors.ErrEngineStopped
	}
	if !domain.ValidIdentifier(string(userID)) {
		return domain.Connection{}, errors.ErrInvalidIdentifier
	}

	now := e.now().UTC()
	conn := domain.Connection{
		ID:          domain.ConnectionID(uuid.NewString()),
		UserID:      userID,
		ConnectedAt: now,
		LastSeen:    now,
	}
	rooms, err := e.sync.Connect(ctx, conn, sink)
	if err != nil {
		return domain.Connection{}, fmt.Errorf("connect %s: %w", userID, err)
	}

	evt := event.Connected{ConnectionID: conn.ID, UserID: userID, Rooms: rooms, At: now}
	if err := e.dispatcher.emit(ctx, conn.ID, evt); err != nil {
		e.log.Warn("Cannot acknowledge connection", "connection_id", conn.ID, "error", err)
	}
	e.log.Info("User connected", "user_id", userID, "connection_id", conn.ID, "rooms", len(rooms))
	return conn, nil
}

// Disconnect is idempotent. The sink is closed when it supports it.
func (e *Engine) Disconnect(connID domain.ConnectionID) {
	sink, _ := e.sessions.Sink(connID)
	conn, ok := e.sync.Disconnect(connID)
	if !ok {
		return
	}
	if closer, ok := sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			e.log.Debug("Sink close failed", "connection_id", connID, "error", err)
		}
	}
	e.log.Info("User disconnected", "user_id", conn.UserID, "connection_id", connID,
		"still_online", e.sessions.IsOnline(conn.UserID))
}

// Touch records activity on a connection.
func (e *Engine) Touch(connID domain.ConnectionID) {
	e.sessions.Touch(connID, e.now())
}

// ReapStale disconnects every connection silent since before.
func (e *Engine) ReapStale(before time.Time) int {
	stale := e.sessions.Stale(before)
	for _, conn := range stale {
		e.log.Debug("Reaping silent connection", "connection_id", conn.ID, "last_seen", conn.LastSeen)
		e.Disconnect(conn.ID)
	}
	return len(stale)
}

func (e *Engine) SendDirect(ctx context.Context, cmd domain.SendDirectCommand) (domain.Message, error) {
	return e.dispatcher.SendDirect(ctx, cmd)
}

func (e *Engine) SendGroup(ctx context.Context, cmd domain.SendGroupCommand) (domain.Message, error) {
	return e.dispatcher.SendGroup(ctx, cmd)
}

func (e *Engine) JoinGroupRoom(ctx context.Context, userID domain.UserID, groupID domain.GroupID) error {
	return e.sync.JoinGroupRoom(ctx, userID, groupID)
}

func (e *Engine) LeaveGroupRoom(userID domain.UserID, groupID domain.GroupID) {
	e.sync.LeaveGroupRoom(userID, groupID)
}

func (e *Engine) MemberAdded(userID domain.UserID, groupID domain.GroupID) {
	e.sync.MemberAdded(userID, groupID)
}

func (e *Engine) MemberRemoved(userID domain.UserID, groupID domain.GroupID) {
	e.sync.MemberRemoved(userID, groupID)
}

// Resync re-reads the durable membership of an online user.
func (e *Engine) Resync(ctx context.Context, userID domain.UserID) error {
	return e.sync.Resync(ctx, userID)
}

func (e *Engine) IsOnline(userID domain.UserID) bool {
	return e.sessions.IsOnline(userID)
}

func (e *Engine) RoomsOf(userID domain.UserID) []domain.RoomID {
	return e.rooms.RoomsOf(userID)
}

func (e *Engine) Stats() domain.PresenceStats {
	users, conns := e.sessions.Stats()
	return domain.PresenceStats{
		OnlineUsers: users,
		Connections: conns,
		Rooms:       e.rooms.RoomCount(),
	}
}
