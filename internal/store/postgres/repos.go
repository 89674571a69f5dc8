package postgres

import (
	"database/sql"

	"realtime_go/internal/domain"
)

// NewRepositories bundles all PostgreSQL-backed repositories over one handle.
func NewRepositories(db *sql.DB) *domain.Repositories {
	return &domain.Repositories{
		Users:         NewUserRepo(db),
		Conversations: NewConversationRepo(db),
		Memberships:   NewMembershipRepo(db),
		Messages:      NewMessageRepo(db),
		ReadMarks:     NewReadMarkRepo(db),
		Notifications: NewNotificationRepo(db),
	}
}
