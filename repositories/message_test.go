package repositories

import (
	"chat-fanout/domain"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T, dir string) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	return db
}

func newMessageRepository(t *testing.T, limit *int) *MessageRepository {
	t.Helper()
	db := openDB(t, t.TempDir())
	repository, err := NewMessageRepository(db, slog.Default(), limit)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repository.Close()
		_ = db.Close()
	})
	return repository
}

func Test_Direct_Conversation_Is_Shared_By_Both_Sides(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMessageRepository(t, nil)

	// Given a conversation in both directions and unrelated traffic
	m1, err := repository.StoreMessage(ctx, "alice", domain.DirectTo("bob"), "hi bob")
	req.NoError(err)
	_, err = repository.StoreMessage(ctx, "alice", domain.DirectTo("carol"), "hi carol")
	req.NoError(err)
	m3, err := repository.StoreMessage(ctx, "bob", domain.DirectTo("alice"), "hi alice")
	req.NoError(err)

	// When each side reads the conversation
	fromAlice, _, err := repository.DirectMessages(ctx, "alice", "bob", nil)
	req.NoError(err)
	fromBob, _, err := repository.DirectMessages(ctx, "bob", "alice", nil)
	req.NoError(err)

	// Then both see the same messages, oldest first
	req.Equal([]domain.Message{m1, m3}, fromAlice)
	req.Equal(fromAlice, fromBob)
	req.Less(m1.Seq, m3.Seq)
}

func Test_Group_Messages_Are_Ordered_By_Sequence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newMessageRepository(t, nil)

	var stored []domain.Message
	for i := 0; i < 12; i++ {
		msg, err := repository.StoreMessage(ctx, "alice", domain.GroupTo("climbing"), fmt.Sprintf("msg %d", i))
		req.NoError(err)
		stored = append(stored, msg)
	}
	_, err := repository.StoreMessage(ctx, "alice", domain.GroupTo("books"), "elsewhere")
	req.NoError(err)

	messages, _, err := repository.GroupMessages(ctx, "climbing", nil)

	req.NoError(err)
	req.Equal(stored, messages)
}

func Test_Messages_Paginate_Backwards_With_Cursor(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	limit := 2
	repository := newMessageRepository(t, &limit)

	// Given five group messages
	var stored []domain.Message
	for i := 1; i <= 5; i++ {
		msg, err := repository.StoreMessage(ctx, "alice", domain.GroupTo("climbing"), fmt.Sprintf("msg %d", i))
		req.NoError(err)
		stored = append(stored, msg)
	}

	// When reading page after page
	page1, cursor, err := repository.GroupMessages(ctx, "climbing", nil)
	req.NoError(err)
	page2, cursor, err := repository.GroupMessages(ctx, "climbing", cursor)
	req.NoError(err)
	page3, cursor, err := repository.GroupMessages(ctx, "climbing", cursor)
	req.NoError(err)
	page4, last, err := repository.GroupMessages(ctx, "climbing", cursor)
	req.NoError(err)

	// Then pages walk back in time, each oldest first
	req.Equal(stored[3:5], page1)
	req.Equal(stored[1:3], page2)
	req.Equal(stored[0:1], page3)
	req.Empty(page4)
	req.Nil(last)
}

func Test_Sequence_Survives_Reopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	// Given a message stored before a restart
	db := openDB(t, dir)
	repository, err := NewMessageRepository(db, slog.Default(), nil)
	req.NoError(err)
	before, err := repository.StoreMessage(ctx, "alice", domain.DirectTo("bob"), "before")
	req.NoError(err)
	req.NoError(repository.Close())
	req.NoError(db.Close())

	// When the database is reopened and a new message stored
	db = openDB(t, dir)
	defer db.Close()
	repository, err = NewMessageRepository(db, slog.Default(), nil)
	req.NoError(err)
	defer repository.Close()
	after, err := repository.StoreMessage(ctx, "bob", domain.DirectTo("alice"), "after")
	req.NoError(err)

	// Then the sequence kept growing and both are readable
	req.Greater(after.Seq, before.Seq)
	messages, _, err := repository.DirectMessages(ctx, "alice", "bob", nil)
	req.NoError(err)
	req.Equal([]domain.Message{before, after}, messages)
}

func Test_Direct_Partners_And_Last_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	limit := 1
	repository := newMessageRepository(t, &limit)

	// Given alice wrote to bob and carol, and dave wrote to bob
	_, err := repository.StoreMessage(ctx, "alice", domain.DirectTo("bob"), "hi bob")
	req.NoError(err)
	lastWithBob, err := repository.StoreMessage(ctx, "bob", domain.DirectTo("alice"), "hi alice")
	req.NoError(err)
	_, err = repository.StoreMessage(ctx, "carol", domain.DirectTo("alice"), "hi from carol")
	req.NoError(err)
	_, err = repository.StoreMessage(ctx, "dave", domain.DirectTo("bob"), "unrelated")
	req.NoError(err)
	lastInGroup, err := repository.StoreMessage(ctx, "alice", domain.GroupTo("climbing"), "rope check")
	req.NoError(err)

	// When alice lists her partners
	partners, err := repository.DirectPartners(ctx, "alice")

	// Then only her own conversations show up, sorted
	req.NoError(err)
	req.Equal([]domain.UserID{"bob", "carol"}, partners)

	// And the last message of each conversation is read from either side
	msg, ok, err := repository.LastDirectMessage(ctx, "alice", "bob")
	req.NoError(err)
	req.True(ok)
	req.Equal(lastWithBob, msg)
	msg, ok, err = repository.LastGroupMessage(ctx, "climbing")
	req.NoError(err)
	req.True(ok)
	req.Equal(lastInGroup, msg)

	// And an empty conversation has no last message
	_, ok, err = repository.LastGroupMessage(ctx, "books")
	req.NoError(err)
	req.False(ok)
	partners, err = repository.DirectPartners(ctx, "erin")
	req.NoError(err)
	req.Empty(partners)
}
