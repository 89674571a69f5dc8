package service

import (
	"context"
	"fmt"

	"realtime_go/internal/domain"
	"realtime_go/internal/presence"
)

// GroupService enforces the role rules for group conversations. Every
// mutating call evaluates the actor's role exactly once, at this boundary.
// Membership state machine per (conversation, user):
// nonmember -> member -> {admin, removed}; admin -> member or removed.
// The owner role is assigned at group creation and never transfers.
type GroupService struct {
	convs    domain.ConversationRepository
	members  domain.MembershipRepository
	users    domain.UserRepository
	registry *presence.Registry
}

func NewGroupService(repos *domain.Repositories, registry *presence.Registry) *GroupService {
	return &GroupService{
		convs:    repos.Conversations,
		members:  repos.Memberships,
		users:    repos.Users,
		registry: registry,
	}
}

type GroupCreateInput struct {
	Name               string
	Description        *string
	IsPrivate          bool
	AllowMemberInvites bool
	MemberIDs          []int64
}

// CreateGroup creates a group conversation with the creator as owner. The
// conversation row and all initial memberships are written in one
// transaction, so the one-owner invariant holds from the start.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID int64, in GroupCreateInput) (*domain.Conversation, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: group name is required", domain.ErrInvalidInput)
	}

	members := []*domain.Membership{
		{UserID: creatorID, Role: domain.RoleOwner},
	}
	seen := map[int64]struct{}{creatorID: {}}
	for _, id := range in.MemberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, &domain.Membership{UserID: id, Role: domain.RoleMember})
	}

	conv := &domain.Conversation{
		Kind:               domain.ConversationGroup,
		Name:               &in.Name,
		Description:        in.Description,
		OwnerID:            &creatorID,
		IsPrivate:          in.IsPrivate,
		AllowMemberInvites: in.AllowMemberInvites,
	}
	if err := s.convs.Create(ctx, conv, members); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return conv, nil
}

// AddMember adds userID to the group. The actor must be owner/admin, or any
// member when the group allows member invites.
func (s *GroupService) AddMember(ctx context.Context, actorID, groupID, userID int64) error {
	conv, actor, err := s.loadGroupActor(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !actor.CanModerate() && !conv.AllowMemberInvites {
		return domain.ErrForbidden
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if err := s.members.Add(ctx, &domain.Membership{
		ConversationID: groupID,
		UserID:         userID,
		Role:           domain.RoleMember,
	}); err != nil {
		return err
	}

	s.pushToMembers(ctx, groupID, domain.MembershipEvent{
		Type:           domain.EventMemberAdded,
		ConversationID: groupID,
		UserID:         userID,
		ActorID:        actorID,
	})
	return nil
}

// RemoveMember removes userID from the group. Allowed for owner/admin, or for
// the user themselves (self-leave). The owner is never removable; owner
// self-leave fails because ownership transfer is not supported.
func (s *GroupService) RemoveMember(ctx context.Context, actorID, groupID, userID int64) error {
	_, actor, err := s.loadGroupActor(ctx, groupID, actorID)
	if err != nil {
		return err
	}

	target, err := s.members.Get(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if target == nil {
		return domain.ErrNotFound
	}

	if target.Role == domain.RoleOwner {
		if actorID == userID {
			return domain.ErrOwnerMustTransferFirst
		}
		return domain.ErrForbidden
	}
	if actorID != userID && !actor.CanModerate() {
		return domain.ErrForbidden
	}

	if err := s.members.Remove(ctx, groupID, userID); err != nil {
		return err
	}

	s.pushToMembers(ctx, groupID, domain.MembershipEvent{
		Type:           domain.EventMemberRemoved,
		ConversationID: groupID,
		UserID:         userID,
		ActorID:        actorID,
	})
	s.registry.PushToUser(ctx, userID, domain.MembershipEvent{
		Type:           domain.EventMemberRemoved,
		ConversationID: groupID,
		UserID:         userID,
		ActorID:        actorID,
	})
	return nil
}

// PromoteToAdmin raises a member to admin. Owner only.
func (s *GroupService) PromoteToAdmin(ctx context.Context, actorID, groupID, userID int64) error {
	return s.setRole(ctx, actorID, groupID, userID, domain.RoleAdmin)
}

// DemoteAdmin lowers an admin back to member. Owner only; demoting the owner
// is a guarded no-op.
func (s *GroupService) DemoteAdmin(ctx context.Context, actorID, groupID, userID int64) error {
	return s.setRole(ctx, actorID, groupID, userID, domain.RoleMember)
}

func (s *GroupService) setRole(ctx context.Context, actorID, groupID, userID int64, role domain.Role) error {
	_, actor, err := s.loadGroupActor(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleOwner {
		return domain.ErrForbidden
	}

	target, err := s.members.Get(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if target == nil {
		return domain.ErrNotFound
	}
	if target.Role == domain.RoleOwner || target.Role == role {
		return nil
	}
	return s.members.SetRole(ctx, groupID, userID, role)
}

// DeleteGroup removes the group irreversibly: memberships cascade away and
// the conversation is deactivated. Owner only. All former members with live
// connections are told.
func (s *GroupService) DeleteGroup(ctx context.Context, actorID, groupID int64) error {
	_, actor, err := s.loadGroupActor(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if actor.Role != domain.RoleOwner {
		return domain.ErrForbidden
	}

	memberIDs, err := s.memberIDs(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	if err := s.convs.Delete(ctx, groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}

	s.registry.PushToUsers(ctx, memberIDs, domain.GroupDeletedEvent{
		Type:           domain.EventGroupDeleted,
		ConversationID: groupID,
		ActorID:        actorID,
	})
	return nil
}

// ListMembers returns the group's memberships, oldest join first.
func (s *GroupService) ListMembers(ctx context.Context, callerID, groupID int64) ([]*domain.Membership, error) {
	_, _, err := s.loadGroupActor(ctx, groupID, callerID)
	if err != nil {
		return nil, err
	}
	return s.members.List(ctx, groupID)
}

func (s *GroupService) loadGroupActor(ctx context.Context, groupID, actorID int64) (*domain.Conversation, *domain.Membership, error) {
	conv, err := s.convs.GetByID(ctx, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil || !conv.IsActive {
		return nil, nil, domain.ErrConversationNotFound
	}
	if !conv.IsGroup() {
		return nil, nil, fmt.Errorf("%w: not a group conversation", domain.ErrInvalidInput)
	}
	actor, err := s.members.Get(ctx, groupID, actorID)
	if err != nil {
		return nil, nil, fmt.Errorf("get membership: %w", err)
	}
	if actor == nil {
		return nil, nil, domain.ErrNotAMember
	}
	return conv, actor, nil
}

func (s *GroupService) memberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	members, err := s.members.List(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

func (s *GroupService) pushToMembers(ctx context.Context, groupID int64, event any) {
	ids, err := s.memberIDs(ctx, groupID)
	if err != nil {
		return
	}
	s.registry.PushToUsers(ctx, ids, event)
}
