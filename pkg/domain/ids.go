// Package domain defines the typed identifiers shared across the service.
//
// IDs are distinct types over uuid.UUID so a user ID can never be passed
// where an activity ID is expected. Parsing enforces the invariant that IDs
// are valid, non-nil UUIDs at trust boundaries (HTTP, stream payloads).
package domain

import (
	"github.com/google/uuid"

	dErrors "kudos/pkg/domain-errors"
)

// UserID identifies a platform user whose karma is being aggregated.
type UserID uuid.UUID

// ActivityID identifies a single ledger entry. Activity IDs are the unit of
// deduplication: an ID is folded into a user's aggregate at most once.
type ActivityID uuid.UUID

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id ActivityID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ActivityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText implements encoding.TextMarshaler so IDs serialize as their
// canonical UUID string in JSON payloads.
func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ActivityID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ActivityID) UnmarshalText(b []byte) error {
	parsed, err := ParseActivityID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseUserID parses and validates a user ID string.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseActivityID parses and validates an activity ID string.
func ParseActivityID(s string) (ActivityID, error) {
	u, err := parseUUID(s, "activity id")
	return ActivityID(u), err
}

// NewUserID generates a fresh user ID. Production user IDs come from the
// surrounding platform; this exists for fixtures and tests.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewActivityID generates a fresh activity ID.
func NewActivityID() ActivityID { return ActivityID(uuid.New()) }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(dErrors.CodeInvalidInput, what+" must be a valid UUID", err)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return u, nil
}
