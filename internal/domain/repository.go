package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users (the participant
// directory). Lookups return ErrNotFound when no row matches.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListActive(ctx context.Context, offset, limit int) ([]*User, error)
	UpdateLastSeen(ctx context.Context, id int64) error
}

// ConversationRepository defines persistence operations for conversations.
// Get-style lookups return (nil, nil) when no row matches.
type ConversationRepository interface {
	// Create inserts the conversation and its initial memberships in one
	// transaction, so the one-owner invariant holds from the first write.
	Create(ctx context.Context, c *Conversation, members []*Membership) error
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	// FindDirect returns the unique direct conversation for the unordered
	// user pair, or (nil, nil).
	FindDirect(ctx context.Context, userA, userB int64) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
	// Delete removes all memberships and deactivates the conversation in one
	// transaction. Messages keep referencing the row, so it is never dropped.
	Delete(ctx context.Context, id int64) error
}

// MembershipRepository defines operations on conversation memberships.
type MembershipRepository interface {
	// Add inserts a membership; returns ErrAlreadyMember on a duplicate pair.
	Add(ctx context.Context, m *Membership) error
	Remove(ctx context.Context, conversationID, userID int64) error
	// Get returns (nil, nil) when the user is not a member.
	Get(ctx context.Context, conversationID, userID int64) (*Membership, error)
	// List returns memberships ordered by join time, oldest first.
	List(ctx context.Context, conversationID int64) ([]*Membership, error)
	SetRole(ctx context.Context, conversationID, userID int64, role Role) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	// Create assigns m.ID, m.Seq and m.CreatedAt. The sequence number comes
	// from the conversation's counter, bumped in the same transaction as the
	// insert, so it is monotonic per conversation.
	Create(ctx context.Context, m *Message) error
	// GetByID returns (nil, nil) when no row matches.
	GetByID(ctx context.Context, id int64) (*Message, error)
	// UpdateContent persists an edit (content and edited_at).
	UpdateContent(ctx context.Context, m *Message) error
	// SoftDelete redacts content and flags the row; the record is retained so
	// sequence numbers stay contiguous.
	SoftDelete(ctx context.Context, id int64) error
	// ListForConversation returns up to limit messages, newest first by seq.
	ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	// ListUnreadIDs returns ids of messages in the conversation that were not
	// sent by userID and have no read mark with read_at set for userID.
	ListUnreadIDs(ctx context.Context, conversationID, userID int64) ([]int64, error)
}

// ReadMarkRepository defines delivery/read marker operations.
type ReadMarkRepository interface {
	// Get returns (nil, nil) when no mark exists.
	Get(ctx context.Context, messageID, userID int64) (*ReadMark, error)
	// Upsert inserts or merges the mark. Existing timestamps are never
	// overwritten, which makes repeated calls idempotent.
	Upsert(ctx context.Context, mark *ReadMark) error
	// SetStarred sets the viewer's star flag, inserting the mark if absent.
	SetStarred(ctx context.Context, messageID, userID int64, starred bool) error
}

// NotificationRepository defines persistence operations for notifications.
// Create, MarkRead, MarkAllRead and Delete keep the recipient's unread
// counter in step within the same transaction.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	// GetByID returns (nil, nil) when no row matches.
	GetByID(ctx context.Context, id int64) (*Notification, error)
	// ExistsRecent reports whether a notification with the same dedup key
	// (type, sender, recipient, related entity) was created at or after since.
	ExistsRecent(ctx context.Context, typ NotificationType, senderID, recipientID int64, relatedID *int64, since time.Time) (bool, error)
	ListForRecipient(ctx context.Context, recipientID int64, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, recipientID int64) error
	Delete(ctx context.Context, id int64) error
	CountUnread(ctx context.Context, recipientID int64) (int, error)
}

// Repositories bundles every repository so wiring code can hand the whole
// store to the service layer at once.
type Repositories struct {
	Users         UserRepository
	Conversations ConversationRepository
	Memberships   MembershipRepository
	Messages      MessageRepository
	ReadMarks     ReadMarkRepository
	Notifications NotificationRepository
}
