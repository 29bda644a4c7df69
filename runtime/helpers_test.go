package runtime

import (
	"chat-fanout/domain"
	"chat-fanout/domain/event"
	"chat-fanout/errors"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// recordingSink keeps every event it consumed, in order.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	closed bool
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrConnectionClosed
	}
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Message
	for _, e := range s.events {
		if m, ok := e.(event.NewMessage); ok {
			res = append(res, m.Message)
		}
	}
	return res
}

func (s *recordingSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Name() == name {
			n++
		}
	}
	return n
}

// memoryStore is a durable store kept in memory for engine level tests.
type memoryStore struct {
	mu          sync.Mutex
	users       map[domain.UserID]struct{}
	groups      map[domain.GroupID]map[domain.UserID]struct{}
	messages    []domain.Message
	seq         uint64
	failCreate  error
	failMembers error
	createDelay time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:  make(map[domain.UserID]struct{}),
		groups: make(map[domain.GroupID]map[domain.UserID]struct{}),
	}
}

func (m *memoryStore) withUsers(ids ...domain.UserID) *memoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.users[id] = struct{}{}
	}
	return m
}

func (m *memoryStore) withGroup(groupID domain.GroupID, members ...domain.UserID) *memoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[domain.UserID]struct{})
	for _, id := range members {
		set[id] = struct{}{}
		m.users[id] = struct{}{}
	}
	m.groups[groupID] = set
	return m
}

func (m *memoryStore) addMember(groupID domain.GroupID, userID domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[groupID][userID] = struct{}{}
}

func (m *memoryStore) removeMember(groupID domain.GroupID, userID domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups[groupID], userID)
}

func (m *memoryStore) stored() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Message(nil), m.messages...)
}

func (m *memoryStore) CreateMessage(ctx context.Context, senderID domain.UserID, target domain.Target, content string) (domain.Message, error) {
	if m.createDelay > 0 {
		select {
		case <-ctx.Done():
			return domain.Message{}, ctx.Err()
		case <-time.After(m.createDelay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return domain.Message{}, m.failCreate
	}
	m.seq++
	msg := domain.Message{
		ID:         uuid.New(),
		Seq:        m.seq,
		Content:    content,
		SenderID:   senderID,
		Kind:       target.Kind,
		ReceiverID: target.ReceiverID,
		GroupID:    target.GroupID,
		CreatedAt:  time.Now().UTC(),
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memoryStore) ListDirectMessages(_ context.Context, userA, userB domain.UserID) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []domain.Message
	for _, msg := range m.messages {
		if msg.Kind != domain.DirectTarget {
			continue
		}
		if (msg.SenderID == userA && msg.ReceiverID == userB) || (msg.SenderID == userB && msg.ReceiverID == userA) {
			res = append(res, msg)
		}
	}
	return res, nil
}

func (m *memoryStore) ListGroupMessages(_ context.Context, groupID domain.GroupID) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []domain.Message
	for _, msg := range m.messages {
		if msg.Kind == domain.GroupTarget && msg.GroupID == groupID {
			res = append(res, msg)
		}
	}
	return res, nil
}

func (m *memoryStore) GroupMembersOf(_ context.Context, userID domain.UserID) ([]domain.GroupID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMembers != nil {
		return nil, m.failMembers
	}
	var res []domain.GroupID
	for groupID, members := range m.groups {
		if _, ok := members[userID]; ok {
			res = append(res, groupID)
		}
	}
	slices.Sort(res)
	return res, nil
}

func (m *memoryStore) IsGroupMember(_ context.Context, userID domain.UserID, groupID domain.GroupID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[groupID][userID]
	return ok, nil
}

func (m *memoryStore) UserExists(_ context.Context, userID domain.UserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[userID]
	return ok, nil
}

func (m *memoryStore) GroupExists(_ context.Context, groupID domain.GroupID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[groupID]
	return ok, nil
}

// failingSink refuses every event.
type failingSink struct{}

func (failingSink) Consume(context.Context, event.DomainEvent) error {
	return errors.ErrConnectionClosed
}

// panickingSink blows up on every event.
type panickingSink struct{}

func (panickingSink) Consume(context.Context, event.DomainEvent) error {
	panic("sink exploded")
}

// blockingSink never returns before ctx is done.
type blockingSink struct{}

func (blockingSink) Consume(ctx context.Context, _ event.DomainEvent) error {
	<-ctx.Done()
	return fmt.Errorf("%w: %v", errors.ErrSlowConsumer, ctx.Err())
}

func contents(msgs []domain.Message) []string {
	res := make([]string, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, m.Content)
	}
	return res
}

// stallingStore sleeps before every write without looking at ctx, then commits.
type stallingStore struct {
	*memoryStore
	stall atomic.Int64
}

func (s *stallingStore) CreateMessage(_ context.Context, senderID domain.UserID, target domain.Target, content string) (domain.Message, error) {
	time.Sleep(time.Duration(s.stall.Load()))
	return s.memoryStore.CreateMessage(context.Background(), senderID, target, content)
}

// gatedStore reads membership then holds the answer until release is closed.
type gatedStore struct {
	*memoryStore
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(store *memoryStore) *gatedStore {
	return &gatedStore{memoryStore: store, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) IsGroupMember(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (bool, error) {
	member, err := g.memoryStore.IsGroupMember(ctx, userID, groupID)
	close(g.entered)
	<-g.release
	return member, err
}

func (m *memoryStore) isMember(groupID domain.GroupID, userID domain.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[groupID][userID]
	return ok
}
