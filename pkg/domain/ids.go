// Package domain holds typed identifiers shared across modules. Distinct types
// keep a user ID from being passed where a message ID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "spamgate/pkg/domain-errors"
)

type (
	UserID    uuid.UUID
	MessageID uuid.UUID
)

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewMessageID() MessageID { return MessageID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id MessageID) String() string { return uuid.UUID(id).String() }
func (id MessageID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseUserID parses a user ID at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

// ParseMessageID parses a contact message ID at a trust boundary.
func ParseMessageID(s string) (MessageID, error) {
	u, err := parseUUID(s, "message_id")
	return MessageID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}
