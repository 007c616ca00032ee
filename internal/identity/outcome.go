package identity

import (
	"surfpass/internal/auth"
	"surfpass/internal/models"
)

// Step names where a login attempt ends up. Each step carries only the data
// that step needs.
type Step string

const (
	StepSession       Step = "session"
	StepRegister      Step = "register"
	StepVerifyPhone   Step = "verify_phone"
	StepAwaitApproval Step = "await_approval"
	StepDenied        Step = "denied"
)

type Prefill struct {
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

type Outcome struct {
	Step    Step            `json:"step"`
	Token   *auth.Token     `json:"token,omitempty"`
	Account *models.Account `json:"account,omitempty"`
	Prefill *Prefill        `json:"prefill,omitempty"`
}

// RolePolicy is the per-role difference between the three portals.
type RolePolicy struct {
	RequiresApproval bool
	LoginPurpose     models.OTPPurpose
}

var policies = map[models.Role]RolePolicy{
	models.RoleUser:  {RequiresApproval: false, LoginPurpose: models.PurposeLogin},
	models.RoleStaff: {RequiresApproval: true, LoginPurpose: models.PurposeLogin},
	models.RoleAdmin: {RequiresApproval: true, LoginPurpose: models.PurposeAdminLogin},
}

func PolicyFor(role models.Role) (RolePolicy, bool) {
	p, ok := policies[role]
	return p, ok
}

// PurposeAllowed reports whether an OTP of purpose may log into role.
// REGISTER codes are accepted everywhere.
func (p RolePolicy) PurposeAllowed(purpose models.OTPPurpose) bool {
	return purpose == p.LoginPurpose || purpose == models.PurposeRegister
}
