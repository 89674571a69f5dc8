package domain

import "time"

// ConversationKind discriminates one-to-one chats from named groups.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Role is a member's role inside a group conversation.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// NotificationType tags the domain event a notification was created for.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationMessage NotificationType = "message"
	NotificationCall    NotificationType = "call"
)

// User represents an application user.
type User struct {
	ID                  int64     `db:"id" json:"id"`
	Username            string    `db:"username" json:"username"`
	Email               *string   `db:"email" json:"email,omitempty"`
	HashedPassword      string    `db:"hashed_password" json:"-"`
	IsActive            bool      `db:"is_active" json:"is_active"`
	UnreadNotifications int       `db:"unread_notifications" json:"unread_notifications"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	LastSeen            time.Time `db:"last_seen" json:"last_seen"`
}

// Conversation represents a chat conversation (direct or group).
// LastSeq is the per-conversation message sequence counter; it is only ever
// bumped inside the transaction that inserts a message.
type Conversation struct {
	ID                 int64            `db:"id"`
	Kind               ConversationKind `db:"kind"`
	Name               *string          `db:"name"`
	Description        *string          `db:"description"`
	OwnerID            *int64           `db:"owner_id"`
	IsPrivate          bool             `db:"is_private"`
	AllowMemberInvites bool             `db:"allow_member_invites"`
	IsActive           bool             `db:"is_active"`
	LastSeq            int64            `db:"last_seq"`
	CreatedAt          time.Time        `db:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at"`
}

// IsGroup reports whether the conversation is a group chat.
func (c *Conversation) IsGroup() bool {
	return c.Kind == ConversationGroup
}

// Membership ties a user to a conversation with a role.
// A user appears at most once per conversation; a group has exactly one owner.
type Membership struct {
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Role           Role      `db:"role" json:"role"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
}

// CanModerate reports whether the membership's role allows moderating other
// members (add, remove, delete messages).
func (m *Membership) CanModerate() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

// Message represents a single chat message. Sender and conversation are
// immutable once created; deletes are soft so sequence numbers stay contiguous.
type Message struct {
	ID             int64      `db:"id"`
	ConversationID int64      `db:"conversation_id"`
	SenderID       int64      `db:"sender_id"`
	Seq            int64      `db:"seq"`
	Content        string     `db:"content"` // encrypted at rest
	FilePath       *string    `db:"file_path"`
	FileType       *string    `db:"file_type"`
	CreatedAt      time.Time  `db:"created_at"`
	EditedAt       *time.Time `db:"edited_at"`
	IsDeleted      bool       `db:"is_deleted"`
}

// ReadMark tracks per-recipient delivery and read state for a message, plus
// the viewer's star flag. Invariant: read >= delivered >= message creation;
// never created for the sender's own message.
type ReadMark struct {
	MessageID   int64      `db:"message_id" json:"message_id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	IsStarred   bool       `db:"is_starred" json:"is_starred"`
}

// Notification is a durable, deduplicated record of a domain event addressed
// to one recipient.
type Notification struct {
	ID          int64            `db:"id" json:"id"`
	RecipientID int64            `db:"recipient_id" json:"recipient_id"`
	SenderID    int64            `db:"sender_id" json:"sender_id"`
	Type        NotificationType `db:"type" json:"type"`
	RelatedID   *int64           `db:"related_id" json:"related_id,omitempty"`
	Body        string           `db:"body" json:"body"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
