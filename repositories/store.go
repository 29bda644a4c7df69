package repositories

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/errors"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.IDurableStore = (*Store)(nil)

// Store is the badger backed durable state: users, groups, memberships and messages.
type Store struct {
	db       *badger.DB
	log      *slog.Logger
	Users    *UserRepository
	Groups   *GroupRepository
	Messages *MessageRepository
}

// Open opens (or creates) the database at path.
func Open(path string, log *slog.Logger, limitMessages *int) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	store, err := NewStore(db, log, limitMessages)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *badger.DB, log *slog.Logger, limitMessages *int) (*Store, error) {
	messages, err := NewMessageRepository(db, log, limitMessages)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:       db,
		log:      log,
		Users:    NewUserRepository(db),
		Groups:   NewGroupRepository(db),
		Messages: messages,
	}, nil
}

func (s *Store) Close() error {
	if err := s.Messages.Close(); err != nil {
		s.log.Warn("Cannot release message sequence", "error", err)
	}
	return s.db.Close()
}

// CreateMessage refuses a direct message to an unknown user or a group
// message to an unknown group. Sender membership is checked by the caller.
func (s *Store) CreateMessage(ctx context.Context, senderID domain.UserID, target domain.Target,
	content string) (domain.Message, error) {
	switch target.Kind {
	case domain.DirectTarget:
		ok, err := s.Users.UserExists(ctx, target.ReceiverID)
		if err != nil {
			return domain.Message{}, err
		}
		if !ok {
			return domain.Message{}, errors.ErrUnknownReceiver
		}
	case domain.GroupTarget:
		ok, err := s.Groups.GroupExists(ctx, target.GroupID)
		if err != nil {
			return domain.Message{}, err
		}
		if !ok {
			return domain.Message{}, errors.ErrUnknownGroup
		}
	}
	return s.Messages.StoreMessage(ctx, senderID, target, content)
}

func (s *Store) ListDirectMessages(ctx context.Context, userA, userB domain.UserID) ([]domain.Message, error) {
	messages, _, err := s.Messages.DirectMessages(ctx, userA, userB, nil)
	return messages, err
}

func (s *Store) ListGroupMessages(ctx context.Context, groupID domain.GroupID) ([]domain.Message, error) {
	messages, _, err := s.Messages.GroupMessages(ctx, groupID, nil)
	return messages, err
}

func (s *Store) GroupMembersOf(ctx context.Context, userID domain.UserID) ([]domain.GroupID, error) {
	return s.Groups.GroupsOf(ctx, userID)
}

func (s *Store) IsGroupMember(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (bool, error) {
	return s.Groups.IsMember(ctx, userID, groupID)
}

func (s *Store) UserExists(ctx context.Context, userID domain.UserID) (bool, error) {
	return s.Users.UserExists(ctx, userID)
}

func (s *Store) GroupExists(ctx context.Context, groupID domain.GroupID) (bool, error) {
	return s.Groups.GroupExists(ctx, groupID)
}
