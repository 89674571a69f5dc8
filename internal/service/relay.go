package service

import (
	"context"
	"encoding/json"
	"fmt"

	"realtime_go/internal/domain"
	"realtime_go/internal/presence"
)

// SignalRelay forwards ephemeral signals (typing indicators and call setup)
// between two members of a conversation. Nothing is persisted, queued or
// retried: a recipient without live connections simply misses the signal.
// Per-connection writes are serialized, so ICE candidates between the same
// pair keep their relative order.
type SignalRelay struct {
	members  domain.MembershipRepository
	users    domain.UserRepository
	registry *presence.Registry
}

func NewSignalRelay(repos *domain.Repositories, registry *presence.Registry) *SignalRelay {
	return &SignalRelay{
		members:  repos.Memberships,
		users:    repos.Users,
		registry: registry,
	}
}

var signalTypes = map[string]struct{}{
	domain.SignalTyping:       {},
	domain.SignalCallOffer:    {},
	domain.SignalCallAnswer:   {},
	domain.SignalICECandidate: {},
	domain.SignalCallEnd:      {},
}

// Relay forwards the payload verbatim to every live connection of the target
// user. Both users must be members of the conversation.
func (s *SignalRelay) Relay(ctx context.Context, typ string, fromID, toID, conversationID int64, payload json.RawMessage) error {
	if _, ok := signalTypes[typ]; !ok {
		return fmt.Errorf("%w: unknown signal type %q", domain.ErrInvalidInput, typ)
	}

	from, err := s.members.Get(ctx, conversationID, fromID)
	if err != nil {
		return fmt.Errorf("check sender membership: %w", err)
	}
	to, err := s.members.Get(ctx, conversationID, toID)
	if err != nil {
		return fmt.Errorf("check target membership: %w", err)
	}
	if from == nil || to == nil {
		return domain.ErrNotAMember
	}

	var username string
	if u, err := s.users.GetByID(ctx, fromID); err == nil && u != nil {
		username = u.Username
	}

	s.registry.PushToUser(ctx, toID, domain.SignalEvent{
		Type:           typ,
		ConversationID: conversationID,
		SenderID:       fromID,
		SenderUsername: username,
		TargetUserID:   toID,
		Payload:        payload,
	})
	return nil
}
