package service

import (
	"context"
	"fmt"

	"realtime_go/internal/domain"
)

// ConversationService covers read-side conversation operations; creation
// happens through the MessageRouter (direct) and GroupService (group).
type ConversationService struct {
	convs   domain.ConversationRepository
	members domain.MembershipRepository
}

func NewConversationService(repos *domain.Repositories) *ConversationService {
	return &ConversationService{
		convs:   repos.Conversations,
		members: repos.Memberships,
	}
}

func (s *ConversationService) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	return s.convs.ListForUser(ctx, userID)
}

func (s *ConversationService) Get(ctx context.Context, conversationID, userID int64) (*domain.Conversation, error) {
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil || !conv.IsActive {
		return nil, domain.ErrConversationNotFound
	}
	member, err := s.members.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member == nil {
		return nil, domain.ErrNotAMember
	}
	return conv, nil
}
