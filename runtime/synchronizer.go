package runtime

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/errors"
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

var _ contract.IMembershipNotifier = (*Synchronizer)(nil)

// Synchronizer keeps the live room subscriptions of a user in line with the
// durable group membership. Everything touching one identity runs under that
// identity's lock so that a connect racing a disconnect cannot leave the
// directory inconsistent.
type Synchronizer struct {
	log            *slog.Logger
	sessions       *SessionRegistry
	rooms          *RoomDirectory
	store          contract.IDurableStore
	locks          *KeyedLocker
	persistTimeout time.Duration
}

func NewSynchronizer(log *slog.Logger, sessions *SessionRegistry, rooms *RoomDirectory,
	store contract.IDurableStore, persistTimeout time.Duration) *Synchronizer {
	return &Synchronizer{
		log:            log,
		sessions:       sessions,
		rooms:          rooms,
		store:          store,
		locks:          NewKeyedLocker(),
		persistTimeout: persistTimeout,
	}
}

// Connect registers conn and subscribes its identity to its inbox and to every
// group of the durable membership snapshot, read once here.
// When the snapshot cannot be read nothing is registered.
func (s *Synchronizer) Connect(ctx context.Context, conn domain.Connection, sink contract.EventSink) ([]domain.RoomID, error) {
	unlock := s.locks.Lock(string(conn.UserID))
	defer unlock()

	groups, err := s.snapshot(ctx, conn.UserID)
	if err != nil {
		return nil, err
	}

	if _, err = s.sessions.AddConnection(conn, sink); err != nil {
		return nil, err
	}
	s.reconcile(conn.UserID, groups)
	return s.rooms.RoomsOf(conn.UserID), nil
}

// Disconnect removes a connection. Room subscriptions are only dropped once
// the identity has no connection left, so a second device keeps receiving.
func (s *Synchronizer) Disconnect(connID domain.ConnectionID) (domain.Connection, bool) {
	conn, ok := s.sessions.Lookup(connID)
	if !ok {
		return domain.Connection{}, false
	}

	unlock := s.locks.Lock(string(conn.UserID))
	defer unlock()

	removed, ok := s.sessions.RemoveConnection(connID)
	if !ok {
		return domain.Connection{}, false
	}
	if !s.sessions.IsOnline(removed.UserID) {
		left := s.rooms.UnsubscribeAll(removed.UserID)
		s.log.Debug("User went offline", "user_id", removed.UserID, "rooms_left", len(left))
	}
	return removed, true
}

// Resync reads a fresh membership snapshot for an online user and reconciles
// its group subscriptions with it.
func (s *Synchronizer) Resync(ctx context.Context, userID domain.UserID) error {
	unlock := s.locks.Lock(string(userID))
	defer unlock()

	if !s.sessions.IsOnline(userID) {
		return nil
	}
	groups, err := s.snapshot(ctx, userID)
	if err != nil {
		return err
	}
	s.reconcile(userID, groups)
	return nil
}

// JoinGroupRoom subscribes an online user to a group room it durably belongs to.
// Membership is checked against the store, not against live state, and under
// the identity lock so a concurrent MemberRemoved cannot slip between the
// check and the subscription.
func (s *Synchronizer) JoinGroupRoom(ctx context.Context, userID domain.UserID, groupID domain.GroupID) error {
	unlock := s.locks.Lock(string(userID))
	defer unlock()

	member, err := withTimeout(ctx, s.persistTimeout, func(ctx context.Context) (bool, error) {
		return s.store.IsGroupMember(ctx, userID, groupID)
	})
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrNotGroupMember
	}
	if !s.sessions.IsOnline(userID) {
		return nil
	}
	return s.rooms.Subscribe(domain.GroupRoom(groupID), userID)
}

// LeaveGroupRoom stops room traffic without touching durable membership.
func (s *Synchronizer) LeaveGroupRoom(userID domain.UserID, groupID domain.GroupID) {
	unlock := s.locks.Lock(string(userID))
	defer unlock()
	s.rooms.Unsubscribe(domain.GroupRoom(groupID), userID)
}

// MemberAdded must be called after the durable membership was committed.
func (s *Synchronizer) MemberAdded(userID domain.UserID, groupID domain.GroupID) {
	unlock := s.locks.Lock(string(userID))
	defer unlock()

	// Offline users pick the group up from the snapshot on their next connect
	if !s.sessions.IsOnline(userID) {
		return
	}
	if err := s.rooms.Subscribe(domain.GroupRoom(groupID), userID); err != nil {
		s.log.Warn("Cannot subscribe new member", "user_id", userID, "group_id", groupID, "error", err)
	}
}

// MemberRemoved must be called after the durable membership was deleted.
func (s *Synchronizer) MemberRemoved(userID domain.UserID, groupID domain.GroupID) {
	unlock := s.locks.Lock(string(userID))
	defer unlock()
	s.rooms.Unsubscribe(domain.GroupRoom(groupID), userID)
}

func (s *Synchronizer) snapshot(ctx context.Context, userID domain.UserID) ([]domain.GroupID, error) {
	return withTimeout(ctx, s.persistTimeout, func(ctx context.Context) ([]domain.GroupID, error) {
		return s.store.GroupMembersOf(ctx, userID)
	})
}

// reconcile makes the live subscriptions of userID equal to its inbox plus groups.
// Caller holds the identity lock.
func (s *Synchronizer) reconcile(userID domain.UserID, groups []domain.GroupID) {
	desired := append([]domain.RoomID{domain.UserRoom(userID)},
		lo.Map(groups, func(g domain.GroupID, _ int) domain.RoomID { return domain.GroupRoom(g) })...)

	current := s.rooms.RoomsOf(userID)
	stale, missing := lo.Difference(current, desired)

	for _, roomID := range missing {
		if err := s.rooms.Subscribe(roomID, userID); err != nil {
			s.log.Warn("Skipping room from membership snapshot", "user_id", userID, "room_id", roomID, "error", err)
		}
	}
	for _, roomID := range stale {
		s.rooms.Unsubscribe(roomID, userID)
	}
}
