//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	messageSequenceKey   = "seq:message"
	messageSequenceLease = 1000
)

// 20 digits hold any uint64 so keys sort in sequence order
const seqDigits = 20

type IMessageRepository interface {
	StoreMessage(ctx context.Context, senderID domain.UserID, target domain.Target, content string) (domain.Message, error)
	DirectMessages(ctx context.Context, userA, userB domain.UserID, cursor *string) ([]domain.Message, *string, error)
	GroupMessages(ctx context.Context, groupID domain.GroupID, cursor *string) ([]domain.Message, *string, error)
	DirectPartners(ctx context.Context, userID domain.UserID) ([]domain.UserID, error)
	LastDirectMessage(ctx context.Context, userA, userB domain.UserID) (domain.Message, bool, error)
	LastGroupMessage(ctx context.Context, groupID domain.GroupID) (domain.Message, bool, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	seq           *badger.Sequence
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSequenceKey), messageSequenceLease)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, seq: seq, limitMessages: limitMessages}, nil
}

// Close hands the unused part of the sequence lease back to the database.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// StoreMessage assigns the next sequence number to a new message and persists it.
// Direct messages live under "dm:{lo}:{hi}:{seq}" where lo and hi are the
// two participants in lexical order, so both sides read one conversation.
// Group messages live under "gm:{group}:{seq}".
func (m *MessageRepository) StoreMessage(ctx context.Context, senderID domain.UserID,
	target domain.Target, content string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	n, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next sequence: %w", err)
	}

	msg := domain.Message{
		ID:         uuid.New(),
		Seq:        n + 1,
		Content:    content,
		SenderID:   senderID,
		Kind:       target.Kind,
		ReceiverID: target.ReceiverID,
		GroupID:    target.GroupID,
		CreatedAt:  now(),
	}
	key, err := messageKey(msg)
	if err != nil {
		return domain.Message{}, err
	}
	bytes, err := encode(fromMessage(msg))
	if err != nil {
		return domain.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// DirectMessages returns one page of the conversation between two users, oldest first.
// A nil cursor starts from the most recent message. The returned cursor points
// to the oldest message of the page and fetches the page before it.
func (m *MessageRepository) DirectMessages(ctx context.Context, userA, userB domain.UserID,
	cursor *string) ([]domain.Message, *string, error) {
	return m.page(ctx, directPrefix(userA, userB), cursor)
}

func (m *MessageRepository) GroupMessages(ctx context.Context, groupID domain.GroupID,
	cursor *string) ([]domain.Message, *string, error) {
	return m.page(ctx, groupPrefix(groupID), cursor)
}

// DirectPartners lists every user userID exchanged a direct message with,
// sorted by id. Only keys are read.
func (m *MessageRepository) DirectPartners(ctx context.Context, userID domain.UserID) ([]domain.UserID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[domain.UserID]struct{})
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte("dm:")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			// dm:{lo}:{hi}:{seq}, identifiers never hold a colon
			parts := strings.Split(string(it.Item().Key()), ":")
			if len(parts) != 4 {
				continue
			}
			first, second := domain.UserID(parts[1]), domain.UserID(parts[2])
			switch userID {
			case first:
				seen[second] = struct{}{}
			case second:
				seen[first] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	partners := make([]domain.UserID, 0, len(seen))
	for id := range seen {
		partners = append(partners, id)
	}
	slices.Sort(partners)
	return partners, nil
}

func (m *MessageRepository) LastDirectMessage(ctx context.Context, userA, userB domain.UserID) (domain.Message, bool, error) {
	return m.last(ctx, directPrefix(userA, userB))
}

func (m *MessageRepository) LastGroupMessage(ctx context.Context, groupID domain.GroupID) (domain.Message, bool, error) {
	return m.last(ctx, groupPrefix(groupID))
}

// last reads the most recent message under prefix, ignoring the page limit.
func (m *MessageRepository) last(ctx context.Context, prefixStr string) (domain.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, false, err
	}
	var value []byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()
		it.Seek(append([]byte(prefixStr), []byte(strings.Repeat("9", seqDigits))...))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		var err error
		value, err = it.Item().ValueCopy(nil)
		return err
	})
	if err != nil || value == nil {
		return domain.Message{}, false, err
	}
	var record messageRecord
	if err = decode(value, &record); err != nil {
		return domain.Message{}, false, err
	}
	msg, err := toMessage(record)
	if err != nil {
		return domain.Message{}, false, err
	}
	return msg, true, nil
}

func (m *MessageRepository) page(ctx context.Context, prefixStr string, cursor *string) ([]domain.Message, *string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var records [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			seekKey = append([]byte(prefixStr), []byte(strings.Repeat("9", seqDigits))...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()[len(prefix):]) == *cursor {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(records) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			records = append(records, value)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]domain.Message, 0, len(records))
	for _, b := range records {
		var record messageRecord
		if err = decode(b, &record); err != nil {
			return nil, nil, err
		}
		msg, err := toMessage(record)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, msg)
	}
	// Iteration ran newest first
	slices.Reverse(messages)
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

func messageKey(msg domain.Message) (string, error) {
	switch msg.Kind {
	case domain.DirectTarget:
		return fmt.Sprintf("%s%0*d", directPrefix(msg.SenderID, msg.ReceiverID), seqDigits, msg.Seq), nil
	case domain.GroupTarget:
		return fmt.Sprintf("%s%0*d", groupPrefix(msg.GroupID), seqDigits, msg.Seq), nil
	default:
		return "", fmt.Errorf("%w: unknown target kind %q", errors.ErrValidation, msg.Kind)
	}
}

func directPrefix(userA, userB domain.UserID) string {
	first, second := userA, userB
	if second < first {
		first, second = second, first
	}
	return fmt.Sprintf("dm:%s:%s:", first, second)
}

func groupPrefix(groupID domain.GroupID) string {
	return fmt.Sprintf("gm:%s:", groupID)
}
