package identity

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownRole = errors.New("unknown role")
	// ErrAlreadyRegistered means the verified phone already belongs to an
	// account of this role.
	ErrAlreadyRegistered = errors.New("an account with this phone already exists for this role")
	ErrInvalidPurpose    = errors.New("verification code purpose does not match this portal")
)

// ErrConflict names the single profile field that is already taken.
type ErrConflict struct {
	Field string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s is already registered", e.Field)
}

// ErrInvalidProfile names a missing or malformed profile field.
type ErrInvalidProfile struct {
	Field   string
	Message string
}

func (e *ErrInvalidProfile) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
