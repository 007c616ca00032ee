package otp

import (
	"errors"
	"fmt"
)

var (
	ErrExpired           = errors.New("verification code expired")
	ErrNoActiveChallenge = errors.New("no active verification code")
	ErrAttemptsExhausted = errors.New("too many incorrect attempts, request a new code")
	ErrInvalidPurpose    = errors.New("invalid otp purpose")
	// ErrDelivery means the SMS provider rejected or never received the
	// message. The client may retry immediately.
	ErrDelivery = errors.New("verification code could not be delivered")
)

type ErrResendCooldown struct {
	Seconds int
}

func (e *ErrResendCooldown) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting another code", e.Seconds)
}

type ErrSendLimitReached struct {
	Seconds int
}

func (e *ErrSendLimitReached) Error() string {
	return fmt.Sprintf("too many codes requested for this number, try again in %d seconds", e.Seconds)
}

type ErrInvalidCode struct {
	AttemptsRemaining int
}

func (e *ErrInvalidCode) Error() string {
	return fmt.Sprintf("incorrect code, %d attempts remaining", e.AttemptsRemaining)
}
