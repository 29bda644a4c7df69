package services

import (
	"chat-fanout/domain"
	"chat-fanout/errors"
	"chat-fanout/repositories"
	"cmp"
	"context"
	"fmt"
	"slices"
)

type IChatService interface {
	DirectHistory(ctx context.Context, viewer, other domain.UserID, cursor *string) ([]domain.Message, *string, error)
	GroupHistory(ctx context.Context, viewer domain.UserID, groupID domain.GroupID, cursor *string) ([]domain.Message, *string, error)
	Conversations(ctx context.Context, viewer domain.UserID) ([]domain.Conversation, error)
}

// ChatService serves stored conversations. Pages are oldest first and walk
// back in time with the returned cursor.
type ChatService struct {
	messages repositories.IMessageRepository
	groups   repositories.IGroupRepository
	users    repositories.IUserRepository
}

func NewChatService(messages repositories.IMessageRepository, groups repositories.IGroupRepository,
	users repositories.IUserRepository) *ChatService {
	return &ChatService{messages: messages, groups: groups, users: users}
}

func (s *ChatService) DirectHistory(ctx context.Context, viewer, other domain.UserID,
	cursor *string) ([]domain.Message, *string, error) {
	if !domain.ValidIdentifier(string(other)) {
		return nil, nil, errors.ErrInvalidIdentifier
	}
	ok, err := s.users.UserExists(ctx, other)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if !ok {
		return nil, nil, errors.ErrUnknownUser
	}
	messages, next, err := s.messages.DirectMessages(ctx, viewer, other, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return messages, next, nil
}

// GroupHistory is only readable by members of the group.
func (s *ChatService) GroupHistory(ctx context.Context, viewer domain.UserID, groupID domain.GroupID,
	cursor *string) ([]domain.Message, *string, error) {
	if !domain.ValidIdentifier(string(groupID)) {
		return nil, nil, errors.ErrInvalidIdentifier
	}
	member, err := s.groups.IsMember(ctx, viewer, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if !member {
		return nil, nil, errors.ErrNotGroupMember
	}
	messages, next, err := s.messages.GroupMessages(ctx, groupID, cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return messages, next, nil
}

// Conversations lists every direct exchange and every group of viewer with
// its last message, most recent first. Conversations without any message
// come last, ordered by id.
func (s *ChatService) Conversations(ctx context.Context, viewer domain.UserID) ([]domain.Conversation, error) {
	partners, err := s.messages.DirectPartners(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	groupIDs, err := s.groups.GroupsOf(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	conversations := make([]domain.Conversation, 0, len(partners)+len(groupIDs))
	for _, partner := range partners {
		user, err := s.users.GetUser(ctx, partner)
		if errors.Is(err, errors.ErrUnknownUser) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
		}
		last, ok, err := s.messages.LastDirectMessage(ctx, viewer, partner)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
		}
		conversations = append(conversations, conversation(domain.DirectTarget, string(partner), user.Username, last, ok))
	}
	for _, groupID := range groupIDs {
		group, err := s.groups.GetGroup(ctx, groupID)
		if errors.Is(err, errors.ErrUnknownGroup) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
		}
		last, ok, err := s.messages.LastGroupMessage(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
		}
		conversations = append(conversations, conversation(domain.GroupTarget, string(groupID), group.Name, last, ok))
	}

	slices.SortFunc(conversations, byRecency)
	return conversations, nil
}

func conversation(kind domain.TargetKind, id, name string, last domain.Message, ok bool) domain.Conversation {
	c := domain.Conversation{Kind: kind, ID: id, Name: name}
	if ok {
		c.LastMessage = &last
	}
	return c
}

// byRecency uses the store sequence, which orders messages across conversations.
func byRecency(a, b domain.Conversation) int {
	switch {
	case a.LastMessage == nil && b.LastMessage == nil:
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Kind, b.Kind))
	case a.LastMessage == nil:
		return 1
	case b.LastMessage == nil:
		return -1
	default:
		return cmp.Compare(b.LastMessage.Seq, a.LastMessage.Seq)
	}
}
