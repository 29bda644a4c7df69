package repositories

import (
	"chat-fanout/domain"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Records are stored as CBOR with short integer keys.
// Timestamps are unix nanoseconds.

type messageRecord struct {
	ID         []byte `cbor:"1,keyasint"`
	Seq        uint64 `cbor:"2,keyasint"`
	Content    string `cbor:"3,keyasint"`
	SenderID   string `cbor:"4,keyasint"`
	Kind       string `cbor:"5,keyasint"`
	ReceiverID string `cbor:"6,keyasint,omitempty"`
	GroupID    string `cbor:"7,keyasint,omitempty"`
	At         int64  `cbor:"8,keyasint"`
	IsRead     bool   `cbor:"9,keyasint,omitempty"`
}

type userRecord struct {
	ID           string `cbor:"1,keyasint"`
	Username     string `cbor:"2,keyasint"`
	At           int64  `cbor:"3,keyasint"`
	PasswordHash string `cbor:"4,keyasint,omitempty"`
}

type groupRecord struct {
	ID          string `cbor:"1,keyasint"`
	Name        string `cbor:"2,keyasint"`
	Description string `cbor:"3,keyasint,omitempty"`
	CreatedBy   string `cbor:"4,keyasint"`
	At          int64  `cbor:"5,keyasint"`
	IsActive    bool   `cbor:"6,keyasint"`
}

type membershipRecord struct {
	At int64 `cbor:"1,keyasint"`
}

var encMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

func encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func decode(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

func fromMessage(m domain.Message) messageRecord {
	return messageRecord{
		ID:         m.ID[:],
		Seq:        m.Seq,
		Content:    m.Content,
		SenderID:   string(m.SenderID),
		Kind:       string(m.Kind),
		ReceiverID: string(m.ReceiverID),
		GroupID:    string(m.GroupID),
		At:         m.CreatedAt.UnixNano(),
		IsRead:     m.IsRead,
	}
}

func toMessage(r messageRecord) (domain.Message, error) {
	id, err := uuid.FromBytes(r.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         id,
		Seq:        r.Seq,
		Content:    r.Content,
		SenderID:   domain.UserID(r.SenderID),
		Kind:       domain.TargetKind(r.Kind),
		ReceiverID: domain.UserID(r.ReceiverID),
		GroupID:    domain.GroupID(r.GroupID),
		CreatedAt:  fromNanos(r.At),
		IsRead:     r.IsRead,
	}, nil
}

func fromUser(u domain.User, passwordHash string) userRecord {
	return userRecord{ID: string(u.ID), Username: u.Username, At: u.CreatedAt.UnixNano(), PasswordHash: passwordHash}
}

func toUser(r userRecord) domain.User {
	return domain.User{ID: domain.UserID(r.ID), Username: r.Username, CreatedAt: fromNanos(r.At)}
}

func fromGroup(g domain.Group) groupRecord {
	return groupRecord{
		ID:          string(g.ID),
		Name:        g.Name,
		Description: g.Description,
		CreatedBy:   string(g.CreatedBy),
		At:          g.CreatedAt.UnixNano(),
		IsActive:    g.IsActive,
	}
}

func toGroup(r groupRecord) domain.Group {
	return domain.Group{
		ID:          domain.GroupID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		CreatedBy:   domain.UserID(r.CreatedBy),
		CreatedAt:   fromNanos(r.At),
		IsActive:    r.IsActive,
	}
}

// now truncates the clock to what survives a round trip through a record.
func now() time.Time {
	return fromNanos(time.Now().UnixNano())
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
