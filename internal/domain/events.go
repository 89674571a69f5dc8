package domain

import (
	"encoding/json"
	"time"
)

// Event type tags pushed to live connections.
const (
	EventMessage         = "message"
	EventMessageEdited   = "message_edited"
	EventMessageDeleted  = "message_deleted"
	EventMessagesRead    = "messages_read"
	EventNewNotification = "new_notification"
	EventMemberAdded     = "member_added"
	EventMemberRemoved   = "member_removed"
	EventGroupDeleted    = "group_deleted"
	EventUserOnline      = "user_online"
	EventUserOffline     = "user_offline"
)

// Ephemeral signal types relayed without persistence.
const (
	SignalTyping       = "typing"
	SignalCallOffer    = "call_offer"
	SignalCallAnswer   = "call_answer"
	SignalICECandidate = "ice_candidate"
	SignalCallEnd      = "call_end"
)

// MessageEvent is pushed for message, message_edited and message_deleted.
// Seq is the per-conversation sequence number assigned at acceptance.
type MessageEvent struct {
	Type           string    `json:"type"`
	ConversationID int64     `json:"conversation_id"`
	MessageID      int64     `json:"message_id"`
	Seq            int64     `json:"seq"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username,omitempty"`
	Content        string    `json:"content"`
	FilePath       *string   `json:"file_path,omitempty"`
	FileType       *string   `json:"file_type,omitempty"`
	CreatedAt      time.Time `json:"timestamp"`
	IsEdited       bool      `json:"is_edited"`
	IsDeleted      bool      `json:"is_deleted"`
}

// MessagesReadEvent is pushed when a member marks a conversation read.
type MessagesReadEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
}

// NotificationEvent is pushed when a notification is persisted for a
// recipient with live connections.
type NotificationEvent struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification"`
	UnreadCount  int           `json:"unread_count"`
}

// MembershipEvent is pushed on member_added / member_removed.
type MembershipEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	ActorID        int64  `json:"actor_id"`
}

// GroupDeletedEvent is pushed to all former members on group deletion.
type GroupDeletedEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	ActorID        int64  `json:"actor_id"`
}

// PresenceEvent is broadcast on user_online / user_offline.
type PresenceEvent struct {
	Type     string `json:"type"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// SignalEvent carries an ephemeral payload verbatim between two users.
type SignalEvent struct {
	Type           string          `json:"type"`
	ConversationID int64           `json:"conversation_id"`
	SenderID       int64           `json:"sender_id"`
	SenderUsername string          `json:"sender_username,omitempty"`
	TargetUserID   int64           `json:"target_user_id"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}
