package services

import (
	"chat-fanout/contract"
	"chat-fanout/domain"
	"chat-fanout/errors"
	"chat-fanout/repositories"
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

type IGroupService interface {
	CreateGroup(ctx context.Context, cmd domain.CreateGroupCommand) (domain.Group, error)
	JoinGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (domain.Group, error)
	LeaveGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (domain.Group, error)
	AddMember(ctx context.Context, actorID, userID domain.UserID, groupID domain.GroupID) (domain.Group, error)
	Groups(ctx context.Context, viewer domain.UserID) ([]domain.Group, error)
	Group(ctx context.Context, viewer domain.UserID, groupID domain.GroupID) (domain.GroupDetails, error)
}

// GroupService changes durable membership. The notifier is only told once the
// store committed, so live subscriptions never run ahead of the store.
type GroupService struct {
	log      *slog.Logger
	groups   repositories.IGroupRepository
	notifier contract.IMembershipNotifier
	validate *validator.Validate
}

func NewGroupService(log *slog.Logger, groups repositories.IGroupRepository,
	notifier contract.IMembershipNotifier) *GroupService {
	return &GroupService{log: log, groups: groups, notifier: notifier, validate: validator.New()}
}

func (s *GroupService) CreateGroup(ctx context.Context, cmd domain.CreateGroupCommand) (domain.Group, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return domain.Group{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	group, err := s.groups.CreateGroup(ctx, cmd.CreatorID, cmd.Name, cmd.Description)
	if err != nil {
		return domain.Group{}, classify(err)
	}
	s.notifier.MemberAdded(cmd.CreatorID, group.ID)
	s.log.Info("Group created", "group_id", group.ID, "user_id", cmd.CreatorID)
	return group, nil
}

func (s *GroupService) JoinGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (domain.Group, error) {
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if err = s.groups.AddMember(ctx, groupID, userID); err != nil {
		return domain.Group{}, classify(err)
	}
	s.notifier.MemberAdded(userID, groupID)
	s.log.Debug("Group joined", "group_id", groupID, "user_id", userID)
	return group, nil
}

func (s *GroupService) LeaveGroup(ctx context.Context, userID domain.UserID, groupID domain.GroupID) (domain.Group, error) {
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	if err = s.groups.RemoveMember(ctx, groupID, userID); err != nil {
		return domain.Group{}, classify(err)
	}
	s.notifier.MemberRemoved(userID, groupID)
	s.log.Debug("Group left", "group_id", groupID, "user_id", userID)
	return group, nil
}

// AddMember lets a member bring another existing user into the group.
func (s *GroupService) AddMember(ctx context.Context, actorID, userID domain.UserID,
	groupID domain.GroupID) (domain.Group, error) {
	if !domain.ValidIdentifier(string(userID)) {
		return domain.Group{}, errors.ErrInvalidIdentifier
	}
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, err
	}
	member, err := s.groups.IsMember(ctx, actorID, groupID)
	if err != nil {
		return domain.Group{}, classify(err)
	}
	if !member {
		return domain.Group{}, errors.ErrNotGroupMember
	}
	if err = s.groups.AddMember(ctx, groupID, userID); err != nil {
		return domain.Group{}, classify(err)
	}
	s.notifier.MemberAdded(userID, groupID)
	s.log.Debug("Member added", "group_id", groupID, "user_id", userID, "by", actorID)
	return group, nil
}

// Groups lists the groups viewer belongs to, sorted by id.
func (s *GroupService) Groups(ctx context.Context, viewer domain.UserID) ([]domain.Group, error) {
	ids, err := s.groups.GroupsOf(ctx, viewer)
	if err != nil {
		return nil, classify(err)
	}
	groups := make([]domain.Group, 0, len(ids))
	for _, id := range ids {
		group, err := s.groups.GetGroup(ctx, id)
		if errors.Is(err, errors.ErrUnknownGroup) {
			s.log.Warn("Membership without group", "group_id", id, "user_id", viewer)
			continue
		}
		if err != nil {
			return nil, classify(err)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// Group is only readable by members of the group.
func (s *GroupService) Group(ctx context.Context, viewer domain.UserID, groupID domain.GroupID) (domain.GroupDetails, error) {
	if !domain.ValidIdentifier(string(groupID)) {
		return domain.GroupDetails{}, errors.ErrInvalidIdentifier
	}
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return domain.GroupDetails{}, classify(err)
	}
	member, err := s.groups.IsMember(ctx, viewer, groupID)
	if err != nil {
		return domain.GroupDetails{}, classify(err)
	}
	if !member {
		return domain.GroupDetails{}, errors.ErrNotGroupMember
	}
	members, err := s.groups.MembersOf(ctx, groupID)
	if err != nil {
		return domain.GroupDetails{}, classify(err)
	}
	return domain.GroupDetails{Group: group, Members: members}, nil
}

func (s *GroupService) activeGroup(ctx context.Context, groupID domain.GroupID) (domain.Group, error) {
	if !domain.ValidIdentifier(string(groupID)) {
		return domain.Group{}, errors.ErrInvalidIdentifier
	}
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return domain.Group{}, classify(err)
	}
	if !group.IsActive {
		return domain.Group{}, errors.ErrUnknownGroup
	}
	return group, nil
}

// classify keeps domain errors and reports anything else as a store failure.
func classify(err error) error {
	switch {
	case errors.Is(err, errors.ErrValidation),
		errors.Is(err, errors.ErrNotFound),
		errors.Is(err, errors.ErrGroupAlreadyExists),
		errors.Is(err, errors.ErrPersistence):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
}
