package runtime

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomDirectory_Subscribe_Idempotent(t *testing.T) {
	req := require.New(t)
	directory := NewRoomDirectory(NewSessionRegistry())
	room := domain.GroupRoom("g1")

	// When a participant subscribes twice
	req.NoError(directory.Subscribe(room, "alice"))
	req.NoError(directory.Subscribe(room, "alice"))

	// Then the room is observed exactly as after one subscription
	req.Equal([]domain.UserID{"alice"}, directory.MembersOf(room))
	req.Equal([]domain.RoomID{room}, directory.RoomsOf("alice"))
}

func TestRoomDirectory_Subscribe_Does_Not_Pull_Other_Members(t *testing.T) {
	req := require.New(t)
	directory := NewRoomDirectory(NewSessionRegistry())
	room := domain.GroupRoom("g1")

	req.NoError(directory.Subscribe(room, "alice"))

	req.True(directory.IsSubscribed(room, "alice"))
	req.False(directory.IsSubscribed(room, "bob"))
	req.Len(directory.MembersOf(room), 1)
}

func TestRoomDirectory_Inbox_Belongs_To_Owner(t *testing.T) {
	req := require.New(t)
	directory := NewRoomDirectory(NewSessionRegistry())

	req.NoError(directory.Subscribe(domain.UserRoom("alice"), "alice"))
	req.ErrorIs(directory.Subscribe(domain.UserRoom("alice"), "bob"), errors.ErrForeignInbox)
	req.ErrorIs(directory.Subscribe("lobby", "bob"), errors.ErrInvalidRoom)

	req.Equal([]domain.UserID{"alice"}, directory.MembersOf(domain.UserRoom("alice")))
}

func TestRoomDirectory_Unsubscribe(t *testing.T) {
	req := require.New(t)
	directory := NewRoomDirectory(NewSessionRegistry())
	room := domain.GroupRoom("g1")
	req.NoError(directory.Subscribe(room, "alice"))
	req.NoError(directory.Subscribe(room, "bob"))

	directory.Unsubscribe(room, "alice")
	// Unknown pairs are ignored
	directory.Unsubscribe(room, "carol")
	directory.Unsubscribe(domain.GroupRoom("nope"), "alice")

	req.Equal([]domain.UserID{"bob"}, directory.MembersOf(room))
	req.Empty(directory.RoomsOf("alice"))

	// The last member leaving removes the room entry
	directory.Unsubscribe(room, "bob")
	req.Empty(directory.members)
	req.Empty(directory.rooms)
}

func TestRoomDirectory_UnsubscribeAll(t *testing.T) {
	req := require.New(t)
	directory := NewRoomDirectory(NewSessionRegistry())
	req.NoError(directory.Subscribe(domain.UserRoom("alice"), "alice"))
	req.NoError(directory.Subscribe(domain.GroupRoom("g1"), "alice"))
	req.NoError(directory.Subscribe(domain.GroupRoom("g1"), "bob"))

	left := directory.UnsubscribeAll("alice")

	req.Equal([]domain.RoomID{"group:g1", "user:alice"}, left)
	req.Empty(directory.RoomsOf("alice"))
	req.Equal([]domain.UserID{"bob"}, directory.MembersOf(domain.GroupRoom("g1")))
}

func TestRoomDirectory_ResolveDeliveryTargets(t *testing.T) {
	req := require.New(t)
	sessions := NewSessionRegistry()
	directory := NewRoomDirectory(sessions)
	room := domain.GroupRoom("g1")

	alicePhone := newConnection("alice")
	aliceLaptop := newConnection("alice")
	bob := newConnection("bob")
	for _, c := range []domain.Connection{alicePhone, aliceLaptop, bob} {
		_, err := sessions.AddConnection(c, &recordingSink{})
		req.NoError(err)
	}

	// Given a room with no online member
	req.NoError(directory.Subscribe(room, "carol"))
	req.Empty(directory.ResolveDeliveryTargets(room))

	// When alice and bob subscribe
	req.NoError(directory.Subscribe(room, "alice"))
	req.NoError(directory.Subscribe(room, "bob"))
	req.NoError(directory.Subscribe(domain.UserRoom("alice"), "alice"))

	// Then every live connection is resolved
	targets := directory.ResolveDeliveryTargets(room)
	req.ElementsMatch([]domain.ConnectionID{alicePhone.ID, aliceLaptop.ID, bob.ID}, targets)

	// And a user reachable through several rooms is resolved once
	targets = directory.ResolveDeliveryTargets(room, domain.UserRoom("alice"))
	req.Len(targets, 3)
}
