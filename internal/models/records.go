package models

import "time"

type OTPPurpose string

const (
	PurposeLogin      OTPPurpose = "LOGIN"
	PurposeAdminLogin OTPPurpose = "ADMIN_LOGIN"
	PurposeRegister   OTPPurpose = "REGISTER"
)

func (p OTPPurpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeAdminLogin, PurposeRegister:
		return true
	default:
		return false
	}
}

type OTPChallenge struct {
	ID                  string
	Phone               string
	Purpose             OTPPurpose
	CodeHash            string
	CreatedAt           time.Time
	ExpiresAt           time.Time
	AttemptsRemaining   int
	ResendAvailableAt   time.Time
	ConsumedAt          *time.Time
	SendCount           int
	SendWindowStartedAt time.Time
}

// IsActive reports whether the challenge can still be verified at now.
func (c *OTPChallenge) IsActive(now time.Time) bool {
	return c.ConsumedAt == nil && c.AttemptsRemaining > 0 && now.Before(c.ExpiresAt)
}

type ExpenseEntry struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	Amount      int64      `json:"amount"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	RecordedBy  string     `json:"recordedByStaffId"`
	PhotoRef    *string    `json:"photoRef,omitempty"`
	RecordedAt  time.Time  `json:"timestamp"`
	AmendedAt   *time.Time `json:"amendedAt,omitempty"`
	AmendedBy   *string    `json:"amendedBy,omitempty"`
}

type AccountTotal struct {
	AccountID  string `json:"accountId"`
	FullName   string `json:"fullName"`
	Total      int64  `json:"total"`
	EntryCount int    `json:"entryCount"`
	FirstSeq   int64  `json:"-"`
}

type CheckIn struct {
	AccountID   string    `json:"accountId"`
	CheckedInAt time.Time `json:"checkedInAt"`
	CheckedInBy string    `json:"checkedInBy,omitempty"`
}
