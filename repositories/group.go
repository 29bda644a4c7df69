//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IGroupRepository interface {
	CreateGroup(ctx context.Context, creatorID domain.UserID, name, description string) (domain.Group, error)
	GetGroup(ctx context.Context, groupID domain.GroupID) (domain.Group, error)
	GroupExists(ctx context.Context, groupID domain.GroupID) (bool, error)
	AddMember(ctx context.Context, groupID domain.GroupID, userID domain.UserID) error
	RemoveMember(ctx context.Context, groupID domain.GroupID, userID domain.UserID) error
	IsMember(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (bool, error)
	GroupsOf(ctx context.Context, userID domain.UserID) ([]domain.GroupID, error)
	MembersOf(ctx context.Context, groupID domain.GroupID) ([]domain.UserID, error)
}

// GroupRepository keeps groups under "group:{id}" and every membership twice,
// "member:{group}:{user}" and "membership:{user}:{group}", so both directions
// are a single prefix scan.
type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// CreateGroup persists a new group with its creator as first member.
func (g *GroupRepository) CreateGroup(ctx context.Context, creatorID domain.UserID, name, description string) (domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return domain.Group{}, err
	}
	group := domain.Group{
		ID:          domain.GroupID(uuid.NewString()),
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
		CreatedAt:   now(),
		IsActive:    true,
	}
	data, err := encode(fromGroup(group))
	if err != nil {
		return domain.Group{}, fmt.Errorf("marshal failed: %w", err)
	}
	membership, err := encode(membershipRecord{At: group.CreatedAt.UnixNano()})
	if err != nil {
		return domain.Group{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(creatorID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrUnknownUser
			}
			return err
		}
		key := groupKey(group.ID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrGroupAlreadyExists
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return setMembership(txn, group.ID, creatorID, membership)
	})
	if err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

func (g *GroupRepository) GetGroup(ctx context.Context, groupID domain.GroupID) (domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return domain.Group{}, err
	}
	var record groupRecord
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(groupID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decode(val, &record)
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return domain.Group{}, errors.ErrUnknownGroup
	case err != nil:
		return domain.Group{}, err
	}
	return toGroup(record), nil
}

func (g *GroupRepository) GroupExists(ctx context.Context, groupID domain.GroupID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return exists(g.db, groupKey(groupID))
}

// AddMember commits a durable membership. Both the group and the user must exist.
func (g *GroupRepository) AddMember(ctx context.Context, groupID domain.GroupID, userID domain.UserID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	membership, err := encode(membershipRecord{At: now().UnixNano()})
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(groupKey(groupID)); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUnknownGroup
		} else if err != nil {
			return err
		}
		if _, err := txn.Get(userKey(userID)); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUnknownUser
		} else if err != nil {
			return err
		}
		if _, err := txn.Get(memberKey(groupID, userID)); err == nil {
			return errors.ErrAlreadyGroupMember
		}
		return setMembership(txn, groupID, userID, membership)
	})
}

func (g *GroupRepository) RemoveMember(ctx context.Context, groupID domain.GroupID, userID domain.UserID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(memberKey(groupID, userID)); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotGroupMember
		} else if err != nil {
			return err
		}
		if err := txn.Delete(memberKey(groupID, userID)); err != nil {
			return err
		}
		return txn.Delete(membershipKey(userID, groupID))
	})
}

func (g *GroupRepository) IsMember(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return exists(g.db, memberKey(groupID, userID))
}

// GroupsOf returns the groups userID belongs to, sorted by id.
func (g *GroupRepository) GroupsOf(ctx context.Context, userID domain.UserID) ([]domain.GroupID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	suffixes, err := scanSuffixes(g.db, "membership:"+string(userID)+":")
	if err != nil {
		return nil, err
	}
	groups := make([]domain.GroupID, 0, len(suffixes))
	for _, s := range suffixes {
		groups = append(groups, domain.GroupID(s))
	}
	return groups, nil
}

// MembersOf returns the members of groupID, sorted by id.
func (g *GroupRepository) MembersOf(ctx context.Context, groupID domain.GroupID) ([]domain.UserID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	suffixes, err := scanSuffixes(g.db, "member:"+string(groupID)+":")
	if err != nil {
		return nil, err
	}
	members := make([]domain.UserID, 0, len(suffixes))
	for _, s := range suffixes {
		members = append(members, domain.UserID(s))
	}
	return members, nil
}

func setMembership(txn *badger.Txn, groupID domain.GroupID, userID domain.UserID, data []byte) error {
	if err := txn.Set(memberKey(groupID, userID), data); err != nil {
		return err
	}
	return txn.Set(membershipKey(userID, groupID), data)
}

// scanSuffixes lists keys under prefix without reading values.
func scanSuffixes(db *badger.DB, prefix string) ([]string, error) {
	var suffixes []string
	err := db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			suffixes = append(suffixes, strings.TrimPrefix(string(it.Item().Key()), prefix))
		}
		return nil
	})
	return suffixes, err
}

func groupKey(groupID domain.GroupID) []byte {
	return []byte("group:" + string(groupID))
}

func memberKey(groupID domain.GroupID, userID domain.UserID) []byte {
	return []byte("member:" + string(groupID) + ":" + string(userID))
}

func membershipKey(userID domain.UserID, groupID domain.GroupID) []byte {
	return []byte("membership:" + string(userID) + ":" + string(groupID))
}
