package runtime

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type Set map[domain.UserID]struct{}

// RoomDirectory maps rooms to the identities subscribed to them.
// Subscriptions express intent to receive room traffic; they are resolved
// to live connections through the SessionRegistry at delivery time.
type RoomDirectory struct {
	mu       sync.RWMutex
	sessions *SessionRegistry
	members  map[domain.RoomID]Set
	rooms    map[domain.UserID]map[domain.RoomID]struct{}
}

func NewRoomDirectory(sessions *SessionRegistry) *RoomDirectory {
	return &RoomDirectory{
		sessions: sessions,
		members:  make(map[domain.RoomID]Set),
		rooms:    make(map[domain.UserID]map[domain.RoomID]struct{}),
	}
}

// Subscribe adds userID to roomID. Subscribing twice has no further effect.
// An inbox room only ever accepts its owner.
func (d *RoomDirectory) Subscribe(roomID domain.RoomID, userID domain.UserID) error {
	kind, _, ok := roomID.Parse()
	if !ok {
		return errors.ErrInvalidRoom
	}
	if kind == domain.UserRoomKind {
		if owner, _ := roomID.Owner(); owner != userID {
			return errors.ErrForeignInbox
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.members[roomID]; !ok {
		d.members[roomID] = make(Set)
	}
	d.members[roomID][userID] = struct{}{}

	if _, ok := d.rooms[userID]; !ok {
		d.rooms[userID] = make(map[domain.RoomID]struct{})
	}
	d.rooms[userID][roomID] = struct{}{}
	return nil
}

// Unsubscribe removes userID from roomID. Unknown pairs are ignored.
func (d *RoomDirectory) Unsubscribe(roomID domain.RoomID, userID domain.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unsubscribe(roomID, userID)
}

// UnsubscribeAll removes userID from every room and returns the rooms left.
func (d *RoomDirectory) UnsubscribeAll(userID domain.UserID) []domain.RoomID {
	d.mu.Lock()
	defer d.mu.Unlock()

	left := lo.Keys(d.rooms[userID])
	for _, roomID := range left {
		d.unsubscribe(roomID, userID)
	}
	slices.Sort(left)
	return left
}

func (d *RoomDirectory) unsubscribe(roomID domain.RoomID, userID domain.UserID) {
	if members, ok := d.members[roomID]; ok {
		delete(members, userID)
		// If no one is left in the room, remove the room entry entirely
		if len(members) == 0 {
			delete(d.members, roomID)
		}
	}
	if rooms, ok := d.rooms[userID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(d.rooms, userID)
		}
	}
}

// MembersOf returns the identities subscribed to roomID, sorted.
func (d *RoomDirectory) MembersOf(roomID domain.RoomID) []domain.UserID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	members := make([]domain.UserID, 0, len(d.members[roomID]))
	for userID := range d.members[roomID] {
		members = append(members, userID)
	}
	slices.Sort(members)
	return members
}

// RoomsOf returns the rooms userID is subscribed to, sorted.
func (d *RoomDirectory) RoomsOf(userID domain.UserID) []domain.RoomID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rooms := lo.Keys(d.rooms[userID])
	slices.Sort(rooms)
	return rooms
}

func (d *RoomDirectory) IsSubscribed(roomID domain.RoomID, userID domain.UserID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.members[roomID][userID]
	return ok
}

// ResolveDeliveryTargets flattens every live connection of every identity
// subscribed to any of roomIDs. Each connection appears once even when its
// identity is reachable through several rooms. No online member is not an error.
func (d *RoomDirectory) ResolveDeliveryTargets(roomIDs ...domain.RoomID) []domain.ConnectionID {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var targets []domain.ConnectionID
	seen := make(Set)
	for _, roomID := range roomIDs {
		for userID := range d.members[roomID] {
			if _, done := seen[userID]; done {
				continue
			}
			seen[userID] = struct{}{}
			targets = append(targets, d.sessions.ConnectionsFor(userID)...)
		}
	}
	return lo.Uniq(targets)
}

// RoomCount returns the number of rooms with at least one subscriber.
func (d *RoomDirectory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.members)
}
