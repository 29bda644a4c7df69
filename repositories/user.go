//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, userID domain.UserID, username, passwordHash string) (domain.User, error)
	GetUser(ctx context.Context, userID domain.UserID) (domain.User, error)
	Credentials(ctx context.Context, userID domain.UserID) (string, error)
	UserExists(ctx context.Context, userID domain.UserID) (bool, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser registers a new identity under "user:{id}".
// passwordHash may be empty for identities that only use issued tokens.
func (u *UserRepository) CreateUser(ctx context.Context, userID domain.UserID, username, passwordHash string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	if !domain.ValidIdentifier(string(userID)) {
		return domain.User{}, errors.ErrInvalidIdentifier
	}
	user := domain.User{ID: userID, Username: username, CreatedAt: now()}
	data, err := encode(fromUser(user, passwordHash))
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := userKey(userID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetUser(ctx context.Context, userID domain.UserID) (domain.User, error) {
	record, err := u.get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

// Credentials returns the stored password hash, empty when none was set.
func (u *UserRepository) Credentials(ctx context.Context, userID domain.UserID) (string, error) {
	record, err := u.get(ctx, userID)
	if err != nil {
		return "", err
	}
	return record.PasswordHash, nil
}

func (u *UserRepository) get(ctx context.Context, userID domain.UserID) (userRecord, error) {
	if err := ctx.Err(); err != nil {
		return userRecord{}, err
	}
	var record userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decode(val, &record)
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return userRecord{}, errors.ErrUnknownUser
	case err != nil:
		return userRecord{}, err
	}
	return record, nil
}

func (u *UserRepository) UserExists(ctx context.Context, userID domain.UserID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return exists(u.db, userKey(userID))
}

func userKey(userID domain.UserID) []byte {
	return []byte("user:" + string(userID))
}

func exists(db *badger.DB, key []byte) (bool, error) {
	err := db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}
