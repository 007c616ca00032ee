package identity

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"surfpass/internal/auth"
	"surfpass/internal/db"
	"surfpass/internal/models"
	"surfpass/internal/phone"
	"surfpass/internal/referral"
)

var instagramPattern = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)

// CodeVerifier checks a one-time code for a phone number.
type CodeVerifier interface {
	Verify(ctx context.Context, phone string, purpose models.OTPPurpose, code string) error
}

type Profile struct {
	FullName        string
	InstagramHandle string
	Email           string
}

type Resolver struct {
	accounts    *db.AccountRepository
	ids         *db.AccountIDGenerator
	codes       CodeVerifier
	tokens      *auth.TokenIssuer
	referrals   *referral.Graph
	countryHint string
	superAdmins map[string]bool
	sanitizer   *bluemonday.Policy
}

func NewResolver(
	accounts *db.AccountRepository,
	ids *db.AccountIDGenerator,
	codes CodeVerifier,
	tokens *auth.TokenIssuer,
	referrals *referral.Graph,
	countryHint string,
	superAdminPhones []string,
) *Resolver {
	superAdmins := make(map[string]bool, len(superAdminPhones))
	for _, raw := range superAdminPhones {
		e164, err := phone.Normalize(raw, countryHint)
		if err != nil {
			slog.Warn("ignoring invalid super admin phone", "component", "identity", "phone", raw)
			continue
		}
		superAdmins[e164] = true
	}

	return &Resolver{
		accounts:    accounts,
		ids:         ids,
		codes:       codes,
		tokens:      tokens,
		referrals:   referrals,
		countryHint: countryHint,
		superAdmins: superAdmins,
		sanitizer:   bluemonday.StrictPolicy(),
	}
}

// LoginWithPhone verifies code and either logs the phone's account in for
// role or hands back a registration token for it.
func (r *Resolver) LoginWithPhone(ctx context.Context, role models.Role, rawPhone string, purpose models.OTPPurpose, code string) (*Outcome, error) {
	policy, ok := PolicyFor(role)
	if !ok {
		return nil, ErrUnknownRole
	}
	if purpose == "" {
		purpose = policy.LoginPurpose
	}
	if !policy.PurposeAllowed(purpose) {
		return nil, ErrInvalidPurpose
	}

	e164, err := phone.Normalize(rawPhone, r.countryHint)
	if err != nil {
		return nil, err
	}
	if err := r.codes.Verify(ctx, e164, purpose, code); err != nil {
		return nil, err
	}

	account, err := r.accounts.FindByPhone(ctx, role, e164)
	if errors.Is(err, db.ErrNotFound) {
		return r.registrationOutcome(auth.PendingRegistration{Role: role, Phone: e164})
	}
	if err != nil {
		return nil, err
	}
	return r.outcomeFor(account)
}

// Register creates the account a registration token vouches for. The phone
// and email inside the token take precedence over anything in profile.
func (r *Resolver) Register(ctx context.Context, role models.Role, registrationToken string, profile Profile, referralCode string) (*Outcome, error) {
	policy, ok := PolicyFor(role)
	if !ok {
		return nil, ErrUnknownRole
	}

	claims, err := r.tokens.Verify(ctx, registrationToken, auth.KindRegistration, role)
	if err != nil {
		return nil, err
	}

	profile, err = r.cleanProfile(profile)
	if err != nil {
		return nil, err
	}
	if claims.Email != "" {
		profile.Email = strings.ToLower(claims.Email)
	}

	conflict, err := r.accounts.FindConflict(ctx, role, claims.Phone, profile.Email, profile.InstagramHandle)
	if err != nil {
		return nil, err
	}
	if err := conflictError(conflict); err != nil {
		return nil, err
	}

	var referredBy *string
	if strings.TrimSpace(referralCode) != "" {
		referrer, err := r.referrals.Validate(ctx, "", referralCode)
		if err != nil {
			return nil, err
		}
		referredBy = &referrer.ID
	}

	status := models.StatusApproved
	if policy.RequiresApproval {
		status = models.StatusPending
	}
	superAdmin := role == models.RoleAdmin && claims.Phone != "" && r.superAdmins[claims.Phone]
	if superAdmin {
		status = models.StatusApproved
	}

	account, err := r.accounts.Create(ctx, db.CreateAccountParams{
		ID:              r.ids.Next(),
		Role:            role,
		Phone:           optional(claims.Phone),
		PhoneVerified:   claims.Phone != "",
		Email:           optional(profile.Email),
		InstagramHandle: profile.InstagramHandle,
		FullName:        profile.FullName,
		ReferredBy:      referredBy,
		Status:          status,
		IsSuperAdmin:    superAdmin,
	})
	if err != nil {
		var violation *db.UniqueViolation
		if errors.As(err, &violation) {
			return nil, conflictError(violation.Column)
		}
		return nil, err
	}

	if err := r.tokens.Revoke(ctx, claims); err != nil {
		slog.Warn("registration token reused", "component", "identity", "account_id", account.ID, "error", err)
	}

	slog.Info("account registered", "component", "identity",
		"account_id", account.ID, "role", role, "status", status, "super_admin", superAdmin)

	if claims.Phone == "" {
		token, err := r.tokens.IssuePhoneVerify(role, profile.Email, profile.FullName)
		if err != nil {
			return nil, err
		}
		return &Outcome{
			Step:    StepVerifyPhone,
			Token:   token,
			Account: account,
			Prefill: &Prefill{Email: profile.Email, FullName: profile.FullName},
		}, nil
	}
	return r.outcomeFor(account)
}

// Validate reports the first profile field already taken within role, or ""
// when all are free.
func (r *Resolver) Validate(ctx context.Context, role models.Role, instagram, email, rawPhone string) (string, error) {
	if _, ok := PolicyFor(role); !ok {
		return "", ErrUnknownRole
	}

	var e164 string
	if strings.TrimSpace(rawPhone) != "" {
		var err error
		e164, err = phone.Normalize(rawPhone, r.countryHint)
		if err != nil {
			return "", err
		}
	}

	return r.accounts.FindConflict(ctx, role, e164, normalizeEmail(email), NormalizeInstagram(instagram))
}

// LoginWithOAuth maps a provider identity onto an account of role. Accounts
// without a verified phone must prove one before they get a session.
func (r *Resolver) LoginWithOAuth(ctx context.Context, role models.Role, identity *OAuthIdentity) (*Outcome, error) {
	if _, ok := PolicyFor(role); !ok {
		return nil, ErrUnknownRole
	}
	email := normalizeEmail(identity.Email)
	if email == "" || !identity.EmailVerified {
		return nil, auth.ErrUnauthenticated
	}
	fullName := r.plainText(identity.FullName)

	account, err := r.accounts.FindByEmail(ctx, role, email)
	if errors.Is(err, db.ErrNotFound) {
		return r.registrationOutcome(auth.PendingRegistration{Role: role, Email: email, FullName: fullName})
	}
	if err != nil {
		return nil, err
	}

	if account.Phone == nil || !account.PhoneVerified {
		token, err := r.tokens.IssuePhoneVerify(role, email, fullName)
		if err != nil {
			return nil, err
		}
		return &Outcome{Step: StepVerifyPhone, Token: token, Prefill: &Prefill{Email: email, FullName: fullName}}, nil
	}
	return r.outcomeFor(account)
}

// CompletePhoneVerification finishes the OAuth sub-flow: the phone proven
// with a REGISTER code is stored on the OAuth account and the login resumes.
func (r *Resolver) CompletePhoneVerification(ctx context.Context, role models.Role, phoneVerifyToken, rawPhone, code string) (*Outcome, error) {
	claims, err := r.tokens.Verify(ctx, phoneVerifyToken, auth.KindPhoneVerify, role)
	if err != nil {
		return nil, err
	}

	e164, err := phone.Normalize(rawPhone, r.countryHint)
	if err != nil {
		return nil, err
	}
	if err := r.codes.Verify(ctx, e164, models.PurposeRegister, code); err != nil {
		return nil, err
	}

	account, err := r.accounts.FindByEmail(ctx, role, claims.Email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, auth.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	if err := r.accounts.SetVerifiedPhone(ctx, account.ID, e164); err != nil {
		var violation *db.UniqueViolation
		if errors.As(err, &violation) {
			return nil, &ErrConflict{Field: violation.Column}
		}
		return nil, err
	}
	if err := r.tokens.Revoke(ctx, claims); err != nil {
		return nil, err
	}

	account, err = r.accounts.FindByID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return r.outcomeFor(account)
}

func (r *Resolver) outcomeFor(account *models.Account) (*Outcome, error) {
	switch account.RegistrationStatus {
	case models.StatusDenied:
		return &Outcome{Step: StepDenied, Account: account}, nil
	case models.StatusPending:
		return &Outcome{Step: StepAwaitApproval, Account: account}, nil
	}
	if !account.CanAct() {
		return nil, auth.ErrUnauthenticated
	}

	token, err := r.tokens.IssueSession(account.ID, account.Role)
	if err != nil {
		return nil, err
	}
	return &Outcome{Step: StepSession, Token: token, Account: account}, nil
}

func (r *Resolver) registrationOutcome(p auth.PendingRegistration) (*Outcome, error) {
	token, err := r.tokens.IssueRegistration(p)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Step:    StepRegister,
		Token:   token,
		Prefill: &Prefill{Phone: p.Phone, Email: p.Email, FullName: p.FullName},
	}, nil
}

func (r *Resolver) cleanProfile(p Profile) (Profile, error) {
	p.FullName = r.plainText(p.FullName)
	if p.FullName == "" {
		return p, &ErrInvalidProfile{Field: "fullName", Message: "is required"}
	}
	p.InstagramHandle = NormalizeInstagram(p.InstagramHandle)
	if !instagramPattern.MatchString(p.InstagramHandle) {
		return p, &ErrInvalidProfile{Field: "instagramHandle", Message: "must be a valid Instagram username"}
	}
	p.Email = normalizeEmail(p.Email)
	return p, nil
}

func (r *Resolver) plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(r.sanitizer.Sanitize(s)))
}

// NormalizeInstagram lower-cases the handle and drops a leading "@".
func NormalizeInstagram(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func conflictError(column string) error {
	switch column {
	case "":
		return nil
	case "phone":
		return ErrAlreadyRegistered
	default:
		return &ErrConflict{Field: column}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

