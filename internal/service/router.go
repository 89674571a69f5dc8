package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"realtime_go/internal/domain"
	"realtime_go/internal/presence"
	"realtime_go/internal/security"
)

// convLocks is a fixed pool of mutexes sharded by conversation id, so
// concurrent sends to the same conversation serialize their sequence
// assignment and delivery. The pool is bounded; unrelated conversations may
// share a shard.
type convLocks struct {
	shards [64]sync.Mutex
}

func (l *convLocks) get(id int64) *sync.Mutex {
	return &l.shards[uint64(id)%uint64(len(l.shards))]
}

// MessageRouter accepts validated outbound messages, persists them with a
// per-conversation sequence number, and fans delivery events out to every
// live connection of every member. Validation and authorization failures are
// terminal; push failures are swallowed once the durable write succeeded.
type MessageRouter struct {
	convs     domain.ConversationRepository
	members   domain.MembershipRepository
	messages  domain.MessageRepository
	readMarks domain.ReadMarkRepository
	users     domain.UserRepository
	fanout    *NotificationFanout
	registry  *presence.Registry
	encryptor *security.Encryptor

	MaxMessageLength int
	MessagesPageSize int

	locks convLocks
}

func NewMessageRouter(
	repos *domain.Repositories,
	fanout *NotificationFanout,
	registry *presence.Registry,
	encryptor *security.Encryptor,
	maxMessageLength int,
	messagesPageSize int,
) *MessageRouter {
	return &MessageRouter{
		convs:            repos.Conversations,
		members:          repos.Memberships,
		messages:         repos.Messages,
		readMarks:        repos.ReadMarks,
		users:            repos.Users,
		fanout:           fanout,
		registry:         registry,
		encryptor:        encryptor,
		MaxMessageLength: maxMessageLength,
		MessagesPageSize: messagesPageSize,
	}
}

// SendMessageInput addresses a message either to an existing conversation or
// to a user, in which case the unique direct conversation for the pair is
// resolved or created first.
type SendMessageInput struct {
	ConversationID *int64
	RecipientID    *int64
	Content        string
	FilePath       *string
	FileType       *string
}

func (r *MessageRouter) SendMessage(ctx context.Context, senderID int64, in SendMessageInput) (*domain.Message, error) {
	if in.Content == "" && (in.FilePath == nil || *in.FilePath == "") {
		return nil, domain.ErrEmptyMessage
	}
	if len([]rune(in.Content)) > r.MaxMessageLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", domain.ErrInvalidInput, r.MaxMessageLength)
	}

	var conv *domain.Conversation
	var err error
	switch {
	case in.ConversationID != nil:
		conv, err = r.convs.GetByID(ctx, *in.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("get conversation: %w", err)
		}
		if conv == nil || !conv.IsActive {
			return nil, domain.ErrConversationNotFound
		}
		member, err := r.members.Get(ctx, conv.ID, senderID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if member == nil {
			return nil, domain.ErrNotAMember
		}
	case in.RecipientID != nil:
		conv, err = r.ResolveDirect(ctx, senderID, *in.RecipientID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: conversation_id or recipient_id is required", domain.ErrInvalidInput)
	}

	encrypted, err := r.encryptor.Encrypt(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        encrypted,
		FilePath:       in.FilePath,
		FileType:       in.FileType,
	}

	// Acceptance order is the delivery order: the conversation lock is held
	// from the insert through the push, so recipients observe sequence
	// numbers in the order they were assigned.
	lock := r.locks.get(conv.ID)
	lock.Lock()
	if err := r.messages.Create(ctx, msg); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("insert message: %w", err)
	}
	memberIDs, err := r.memberIDs(ctx, conv.ID)
	if err != nil {
		lock.Unlock()
		log.Printf("router: list members of %d: %v", conv.ID, err)
		return msg, nil
	}
	r.registry.PushToUsers(ctx, memberIDs, r.toEvent(ctx, domain.EventMessage, msg, in.Content))
	lock.Unlock()

	sender, _ := r.users.GetByID(ctx, senderID)
	body := "New message"
	if sender != nil {
		body = fmt.Sprintf("New message from %s", sender.Username)
	}
	convID := conv.ID
	for _, uid := range memberIDs {
		if uid == senderID {
			continue
		}
		if _, err := r.fanout.Notify(ctx, domain.NotificationMessage, senderID, uid, &convID, body); err != nil {
			log.Printf("router: notify %d: %v", uid, err)
		}
	}

	return msg, nil
}

// ResolveDirect returns the unique direct conversation for the pair, creating
// it when absent. Repeated calls with the same pair reuse the conversation.
func (r *MessageRouter) ResolveDirect(ctx context.Context, senderID, recipientID int64) (*domain.Conversation, error) {
	if senderID == recipientID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", domain.ErrInvalidInput)
	}
	if _, err := r.users.GetByID(ctx, recipientID); err != nil {
		return nil, fmt.Errorf("get recipient: %w", err)
	}

	conv, err := r.convs.FindDirect(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	if conv != nil {
		return conv, nil
	}

	conv = &domain.Conversation{Kind: domain.ConversationDirect}
	members := []*domain.Membership{
		{UserID: senderID, Role: domain.RoleMember},
		{UserID: recipientID, Role: domain.RoleMember},
	}
	if err := r.convs.Create(ctx, conv, members); err != nil {
		return nil, fmt.Errorf("create direct conversation: %w", err)
	}
	return conv, nil
}

// EditMessage updates content; only the original sender may edit. The edit is
// re-announced to the same recipient set with the original sequence number.
func (r *MessageRouter) EditMessage(ctx context.Context, callerID, messageID int64, newContent string) (*domain.Message, error) {
	if newContent == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len([]rune(newContent)) > r.MaxMessageLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", domain.ErrInvalidInput, r.MaxMessageLength)
	}

	msg, err := r.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil || msg.IsDeleted {
		return nil, domain.ErrMessageNotFound
	}
	if msg.SenderID != callerID {
		return nil, domain.ErrNotAuthor
	}

	encrypted, err := r.encryptor.Encrypt(newContent)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	now := time.Now().UTC()
	msg.Content = encrypted
	msg.EditedAt = &now
	if err := r.messages.UpdateContent(ctx, msg); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	if memberIDs, err := r.memberIDs(ctx, msg.ConversationID); err == nil {
		r.registry.PushToUsers(ctx, memberIDs, r.toEvent(ctx, domain.EventMessageEdited, msg, newContent))
	}
	return msg, nil
}

// DeleteMessage soft-deletes; allowed for the author or a conversation
// admin/owner. The row is retained so sequence numbers stay contiguous.
func (r *MessageRouter) DeleteMessage(ctx context.Context, callerID, messageID int64) error {
	msg, err := r.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return domain.ErrMessageNotFound
	}

	if msg.SenderID != callerID {
		member, err := r.members.Get(ctx, msg.ConversationID, callerID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if member == nil || !member.CanModerate() {
			return domain.ErrForbidden
		}
	}

	if err := r.messages.SoftDelete(ctx, messageID); err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	msg.IsDeleted = true
	msg.Content = ""

	if memberIDs, err := r.memberIDs(ctx, msg.ConversationID); err == nil {
		r.registry.PushToUsers(ctx, memberIDs, r.toEvent(ctx, domain.EventMessageDeleted, msg, ""))
	}
	return nil
}

// MarkDelivered records delivery acknowledgement for a recipient. Idempotent;
// never creates a mark for the sender's own message.
func (r *MessageRouter) MarkDelivered(ctx context.Context, userID, messageID int64) error {
	return r.mark(ctx, userID, messageID, false)
}

// MarkRead records that the recipient viewed the message. Read implies
// delivered: a missing delivered timestamp is backfilled with the same value.
func (r *MessageRouter) MarkRead(ctx context.Context, userID, messageID int64) error {
	return r.mark(ctx, userID, messageID, true)
}

func (r *MessageRouter) mark(ctx context.Context, userID, messageID int64, read bool) error {
	msg, err := r.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return domain.ErrMessageNotFound
	}
	if msg.SenderID == userID {
		return nil
	}
	member, err := r.members.Get(ctx, msg.ConversationID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if member == nil {
		return domain.ErrNotAMember
	}

	now := time.Now().UTC()
	mark := &domain.ReadMark{
		MessageID:   messageID,
		UserID:      userID,
		DeliveredAt: &now,
	}
	if read {
		mark.ReadAt = &now
	}
	return r.readMarks.Upsert(ctx, mark)
}

// StarMessage sets or clears the caller's star on a message. The flag lives
// on the caller's read mark, so a sender cannot star their own message.
func (r *MessageRouter) StarMessage(ctx context.Context, userID, messageID int64, starred bool) error {
	msg, err := r.messages.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg == nil || msg.IsDeleted {
		return domain.ErrMessageNotFound
	}
	if msg.SenderID == userID {
		return fmt.Errorf("%w: cannot star your own message", domain.ErrInvalidInput)
	}
	member, err := r.members.Get(ctx, msg.ConversationID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if member == nil {
		return domain.ErrNotAMember
	}
	return r.readMarks.SetStarred(ctx, messageID, userID, starred)
}

// MarkConversationRead marks every unread message in the conversation read
// for the caller and announces it to the members.
func (r *MessageRouter) MarkConversationRead(ctx context.Context, conversationID, callerID int64) error {
	member, err := r.members.Get(ctx, conversationID, callerID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if member == nil {
		return domain.ErrNotAMember
	}

	ids, err := r.messages.ListUnreadIDs(ctx, conversationID, callerID)
	if err != nil {
		return fmt.Errorf("list unread: %w", err)
	}
	now := time.Now().UTC()
	for _, id := range ids {
		if err := r.readMarks.Upsert(ctx, &domain.ReadMark{
			MessageID:   id,
			UserID:      callerID,
			DeliveredAt: &now,
			ReadAt:      &now,
		}); err != nil {
			return fmt.Errorf("upsert read mark: %w", err)
		}
	}

	if memberIDs, err := r.memberIDs(ctx, conversationID); err == nil {
		r.registry.PushToUsers(ctx, memberIDs, domain.MessagesReadEvent{
			Type:           domain.EventMessagesRead,
			ConversationID: conversationID,
			UserID:         callerID,
		})
	}
	return nil
}

// ListMessages returns up to limit messages in chronological order (by seq),
// decrypted for the caller. The caller must be a member.
func (r *MessageRouter) ListMessages(ctx context.Context, conversationID, callerID int64, limit int) ([]*MessageResponse, error) {
	conv, err := r.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrConversationNotFound
	}
	member, err := r.members.Get(ctx, conversationID, callerID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if member == nil {
		return nil, domain.ErrNotAMember
	}

	if limit <= 0 || limit > r.MessagesPageSize {
		limit = r.MessagesPageSize
	}
	msgs, err := r.messages.ListForConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	// DB returns newest first; present chronologically.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	res := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp := r.ToResponse(ctx, m)
		if m.SenderID != callerID {
			if mark, err := r.readMarks.Get(ctx, m.ID, callerID); err == nil && mark != nil {
				resp.DeliveredAt = mark.DeliveredAt
				resp.ReadAt = mark.ReadAt
				resp.IsStarred = mark.IsStarred
			}
		}
		res = append(res, resp)
	}
	return res, nil
}

func (r *MessageRouter) memberIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	members, err := r.members.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

// MessageResponse is the decrypted DTO handed to API and socket clients.
type MessageResponse struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       int64      `json:"sender_id"`
	SenderUsername string     `json:"sender_username,omitempty"`
	Seq            int64      `json:"seq"`
	Content        string     `json:"content"`
	FilePath       *string    `json:"file_path,omitempty"`
	FileType       *string    `json:"file_type,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	IsEdited       bool       `json:"is_edited"`
	IsDeleted      bool       `json:"is_deleted"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	IsStarred      bool       `json:"is_starred"`
}

// ToResponse converts a domain message into a decrypted response DTO.
func (r *MessageRouter) ToResponse(ctx context.Context, m *domain.Message) *MessageResponse {
	content := ""
	if !m.IsDeleted {
		if dec, err := r.encryptor.Decrypt(m.Content); err == nil {
			content = dec
		} else {
			log.Printf("router: decrypt message %d: %v", m.ID, err)
		}
	}
	var username string
	if u, err := r.users.GetByID(ctx, m.SenderID); err == nil && u != nil {
		username = u.Username
	}
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderUsername: username,
		Seq:            m.Seq,
		Content:        content,
		FilePath:       m.FilePath,
		FileType:       m.FileType,
		CreatedAt:      m.CreatedAt,
		EditedAt:       m.EditedAt,
		IsEdited:       m.EditedAt != nil,
		IsDeleted:      m.IsDeleted,
	}
}

func (r *MessageRouter) toEvent(ctx context.Context, typ string, m *domain.Message, plainContent string) domain.MessageEvent {
	var username string
	if u, err := r.users.GetByID(ctx, m.SenderID); err == nil && u != nil {
		username = u.Username
	}
	return domain.MessageEvent{
		Type:           typ,
		ConversationID: m.ConversationID,
		MessageID:      m.ID,
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		SenderUsername: username,
		Content:        plainContent,
		FilePath:       m.FilePath,
		FileType:       m.FileType,
		CreatedAt:      m.CreatedAt,
		IsEdited:       m.EditedAt != nil,
		IsDeleted:      m.IsDeleted,
	}
}
