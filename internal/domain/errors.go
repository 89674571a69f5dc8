package domain

import "errors"

// Sentinel errors for the application. Handlers map these to HTTP statuses;
// services return them wrapped so errors.Is still matches.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")

	ErrUnauthorized           = errors.New("unauthorized access")
	ErrForbidden              = errors.New("forbidden")
	ErrNotAMember             = errors.New("not a member of this conversation")
	ErrNotAuthor              = errors.New("only the author may edit this message")
	ErrOwnerMustTransferFirst = errors.New("owner cannot leave without transferring ownership")

	ErrConflict      = errors.New("resource already exists")
	ErrAlreadyMember = errors.New("user is already a member")

	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyMessage = errors.New("message requires text content or a file reference")

	ErrInternal = errors.New("internal server error")
)
