package domain

import (
	"fmt"
	"strings"
)

type RoomKind string

const (
	UserRoomKind  RoomKind = "user"
	GroupRoomKind RoomKind = "group"
)

// RoomID names a set of identities receiving the same traffic.
// It is either "user:<id>" (private inbox) or "group:<id>".
type RoomID string

func UserRoom(id UserID) RoomID {
	return RoomID(fmt.Sprintf("%s:%s", UserRoomKind, id))
}

func GroupRoom(id GroupID) RoomID {
	return RoomID(fmt.Sprintf("%s:%s", GroupRoomKind, id))
}

// Parse splits a room id into its namespace and identifier.
func (r RoomID) Parse() (RoomKind, string, bool) {
	kind, id, found := strings.Cut(string(r), ":")
	if !found || id == "" {
		return "", "", false
	}
	switch RoomKind(kind) {
	case UserRoomKind, GroupRoomKind:
		return RoomKind(kind), id, true
	default:
		return "", "", false
	}
}

// Owner returns the identity owning an inbox room.
func (r RoomID) Owner() (UserID, bool) {
	kind, id, ok := r.Parse()
	if !ok || kind != UserRoomKind {
		return "", false
	}
	return UserID(id), true
}

func (r RoomID) IsGroup() bool {
	kind, _, ok := r.Parse()
	return ok && kind == GroupRoomKind
}
