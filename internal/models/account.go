package models

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleStaff Role = "STAFF"
	RoleAdmin Role = "ADMIN"
)

// ParseRole accepts the role name in any case, as it appears in URL paths.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleStaff:
		return RoleStaff, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

type RegistrationStatus string

const (
	StatusPending  RegistrationStatus = "PENDING"
	StatusApproved RegistrationStatus = "APPROVED"
	StatusDenied   RegistrationStatus = "DENIED"
)

type Account struct {
	ID                 string             `json:"id"`
	Role               Role               `json:"role"`
	Phone              *string            `json:"phone,omitempty"`
	PhoneVerified      bool               `json:"phoneVerified"`
	Email              *string            `json:"email,omitempty"`
	InstagramHandle    string             `json:"instagramHandle"`
	FullName           string             `json:"fullName"`
	ReferredBy         *string            `json:"referredBy,omitempty"`
	RegistrationStatus RegistrationStatus `json:"registrationStatus"`
	IsActive           bool               `json:"isActive"`
	IsSuperAdmin       bool               `json:"isSuperAdmin,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          *time.Time         `json:"updatedAt,omitempty"`
	DecidedAt          *time.Time         `json:"decidedAt,omitempty"`
	DecidedBy          *string            `json:"decidedBy,omitempty"`
}

// ReferralCode is the code other people type to attribute their registration
// to this account.
func (a *Account) ReferralCode() string {
	return a.ID
}

func (a *Account) GetPhone() string {
	if a.Phone != nil {
		return *a.Phone
	}
	return ""
}

func (a *Account) GetEmail() string {
	if a.Email != nil {
		return *a.Email
	}
	return ""
}

// CanAct reports whether the account may use role-scoped endpoints.
func (a *Account) CanAct() bool {
	return a.RegistrationStatus == StatusApproved && a.IsActive
}

type ReferralEdge struct {
	ReferrerAccountID string    `json:"referrerAccountId"`
	RefereeAccountID  string    `json:"refereeAccountId"`
	CreatedAt         time.Time `json:"createdAt"`
}
