package event

import (
	"chat-fanout/domain"
	"time"
)

const (
	ConnectedName  = "connected"
	NewMessageName = "new_message"
)

// DomainEvent is anything the engine emits towards a live connection.
type DomainEvent interface {
	Name() string
}

// Connected is emitted once to a connection after its rooms are synchronized.
type Connected struct {
	ConnectionID domain.ConnectionID
	UserID       domain.UserID
	Rooms        []domain.RoomID
	At           time.Time
}

func (Connected) Name() string { return ConnectedName }

// NewMessage carries a persisted message to every resolved connection.
type NewMessage struct {
	Message domain.Message
}

func (NewMessage) Name() string { return NewMessageName }
