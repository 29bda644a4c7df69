// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type TargetKind string

const (
	DirectTarget TargetKind = "direct"
	GroupTarget  TargetKind = "group"
)

// Target addresses a message either to one user or to one group.
type Target struct {
	Kind       TargetKind
	ReceiverID UserID
	GroupID    GroupID
}

func DirectTo(receiver UserID) Target {
	return Target{Kind: DirectTarget, ReceiverID: receiver}
}

func GroupTo(group GroupID) Target {
	return Target{Kind: GroupTarget, GroupID: group}
}

// Message represents an immutable chat message.
type Message struct {
	ID         uuid.UUID // unique identifier
	Seq        uint64    // store-wide persistence order
	Content    string
	SenderID   UserID
	Kind       TargetKind
	ReceiverID UserID
	GroupID    GroupID
	CreatedAt  time.Time
	IsRead     bool
}

// Rooms returns the rooms a message fans out to.
// A direct message reaches both inboxes so the sender gets its own echo.
func (m Message) Rooms() []RoomID {
	switch m.Kind {
	case DirectTarget:
		if m.SenderID == m.ReceiverID {
			return []RoomID{UserRoom(m.SenderID)}
		}
		return []RoomID{UserRoom(m.SenderID), UserRoom(m.ReceiverID)}
	case GroupTarget:
		return []RoomID{GroupRoom(m.GroupID)}
	default:
		return nil
	}
}
