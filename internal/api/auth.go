package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"surfpass/internal/auth"
	"surfpass/internal/constants"
	"surfpass/internal/identity"
	"surfpass/internal/models"
	"surfpass/internal/otp"
)

const (
	oauthCookieName = "surfpass_oauth"
	oauthCookieTTL  = 10 * time.Minute
)

type AuthHandler struct {
	otp          *otp.Manager
	resolver     *identity.Resolver
	tokens       *auth.TokenIssuer
	google       *identity.GoogleProvider
	feed         FeedSessions
	redirectBase string
	secureCookie bool
}

// NewAuthHandler builds the login and registration endpoints. google may be
// nil when Google sign-in is not configured.
func NewAuthHandler(
	otpManager *otp.Manager,
	resolver *identity.Resolver,
	tokens *auth.TokenIssuer,
	google *identity.GoogleProvider,
	feed FeedSessions,
	redirectBase string,
	secureCookie bool,
) *AuthHandler {
	return &AuthHandler{
		otp:          otpManager,
		resolver:     resolver,
		tokens:       tokens,
		google:       google,
		feed:         feed,
		redirectBase: strings.TrimRight(redirectBase, "/"),
		secureCookie: secureCookie,
	}
}

type SendOTPRequest struct {
	Phone   string `json:"phone" validate:"required,max=32"`
	Purpose string `json:"purpose" validate:"required,oneof=LOGIN ADMIN_LOGIN REGISTER"`
}

// POST /api/v1/auth/otp/send
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	result, err := h.otp.Send(r.Context(), req.Phone, models.OTPPurpose(req.Purpose))
	if err != nil {
		var limit *otp.ErrSendLimitReached
		if errors.As(err, &limit) {
			slog.Warn("otp send quota exhausted", "component", "auth", "client_ip", ClientIP(r), "purpose", req.Purpose)
		}
		writeDomainError(w, r, err)
		return
	}
	success(w, "Verification code sent", result)
}

type VerifyOTPRequest struct {
	Phone   string `json:"phone" validate:"required,max=32"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=LOGIN ADMIN_LOGIN REGISTER"`
	Code    string `json:"code" validate:"required,len=6,numeric"`
}

// POST /api/v1/auth/{role}/otp/verify
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	role, found := roleParam(w, r)
	if !found {
		return
	}

	var req VerifyOTPRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	outcome, err := h.resolver.LoginWithPhone(r.Context(), role, req.Phone, models.OTPPurpose(req.Purpose), req.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOutcome(w, http.StatusOK, outcome)
}

type RegisterRequest struct {
	RegistrationToken string `json:"registrationToken" validate:"required"`
	FullName          string `json:"fullName" validate:"required,max=120"`
	InstagramHandle   string `json:"instagramHandle" validate:"required,max=31"`
	Email             string `json:"email" validate:"omitempty,email,max=254"`
	ReferralCode      string `json:"referralCode" validate:"omitempty,max=32"`
}

// POST /api/v1/auth/{role}/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	role, found := roleParam(w, r)
	if !found {
		return
	}

	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	outcome, err := h.resolver.Register(r.Context(), role, req.RegistrationToken, identity.Profile{
		FullName:        req.FullName,
		InstagramHandle: req.InstagramHandle,
		Email:           req.Email,
	}, req.ReferralCode)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOutcome(w, http.StatusCreated, outcome)
}

type ValidateRequest struct {
	InstagramHandle string `json:"instagramHandle" validate:"omitempty,max=31"`
	Email           string `json:"email" validate:"omitempty,max=254"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
}

type ValidateResponse struct {
	Available     bool   `json:"available"`
	ConflictField string `json:"conflictField,omitempty"`
}

// POST /api/v1/auth/{role}/validate
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	role, found := roleParam(w, r)
	if !found {
		return
	}

	var req ValidateRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	field, err := h.resolver.Validate(r.Context(), role, req.InstagramHandle, req.Email, req.Phone)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if field != "" {
		writeFieldError(w, http.StatusConflict, constants.ErrCodeConflict, field, field+" is already registered")
		return
	}
	success(w, "Available", ValidateResponse{Available: true})
}

// GET /api/v1/auth/{role}/oauth/google/start
func (h *AuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	role, found := roleParam(w, r)
	if !found {
		return
	}
	if h.google == nil {
		notFound(w, "Google sign-in is not enabled")
		return
	}

	state := uuid.NewString()
	verifier := identity.NewPKCEVerifier()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthCookieName,
		Value:    state + "." + verifier,
		Path:     h.oauthPath(role),
		MaxAge:   int(oauthCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthCodeURL(h.callbackURL(role), state, verifier), http.StatusFound)
}

// GET /api/v1/auth/{role}/oauth/google/callback
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	role, found := roleParam(w, r)
	if !found {
		return
	}
	if h.google == nil {
		notFound(w, "Google sign-in is not enabled")
		return
	}

	cookie, err := r.Cookie(oauthCookieName)
	// The state cookie is single use.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthCookieName,
		Value:    "",
		Path:     h.oauthPath(role),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil {
		unauthenticated(w)
		return
	}
	state, verifier, found := strings.Cut(cookie.Value, ".")
	query := r.URL.Query()
	if !found || subtle.ConstantTimeCompare([]byte(state), []byte(query.Get("state"))) != 1 {
		unauthenticated(w)
		return
	}
	if query.Get("error") != "" || query.Get("code") == "" {
		unauthenticated(w)
		return
	}

	oauthIdentity, err := h.google.Exchange(r.Context(), h.callbackURL(role), query.Get("code"), verifier)
	if err != nil {
		slog.Warn("google exchange failed", "role", role, "error", err)
		unauthenticated(w)
		return
	}

	outcome, err := h.resolver.LoginWithOAuth(r.Context(), role, oauthIdentity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOutcome(w, http.StatusOK, outcome)
}

type VerifyPhoneRequest struct {
	Token string `json:"token" validate:"required"`
	Phone string `json:"phone" validate:"required,max=32"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// POST /api/v1/auth/{role}/oauth/verify-phone
func (h *AuthHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	role, found := roleParam(w, r)
	if !found {
		return
	}

	var req VerifyPhoneRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		invalidRequest(w, err)
		return
	}

	outcome, err := h.resolver.CompletePhoneVerification(r.Context(), role, req.Token, req.Phone, req.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeOutcome(w, http.StatusOK, outcome)
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		unauthenticated(w)
		return
	}
	if err := h.tokens.Revoke(r.Context(), claims); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.feed.DisconnectSession(claims.ID)
	success(w, "Logged out", nil)
}

func (h *AuthHandler) oauthPath(role models.Role) string {
	return "/api/v1/auth/" + strings.ToLower(string(role)) + "/oauth/google"
}

func (h *AuthHandler) callbackURL(role models.Role) string {
	return h.redirectBase + h.oauthPath(role) + "/callback"
}

func roleParam(w http.ResponseWriter, r *http.Request) (models.Role, bool) {
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		notFound(w, "Unknown portal")
		return "", false
	}
	return role, true
}

// writeOutcome reports a login outcome. A denied registration is an error
// for the client even though the resolver treats it as a normal result.
func writeOutcome(w http.ResponseWriter, status int, outcome *identity.Outcome) {
	if outcome.Step == identity.StepDenied {
		writeError(w, http.StatusForbidden, constants.ErrCodeRegistrationDenied, outcomeMessage(outcome))
		return
	}
	writeJSON(w, status, Envelope{Success: true, Message: outcomeMessage(outcome), Data: outcome})
}

func outcomeMessage(outcome *identity.Outcome) string {
	switch outcome.Step {
	case identity.StepSession:
		return "Signed in"
	case identity.StepRegister:
		return "Complete your registration"
	case identity.StepVerifyPhone:
		return "Verify your phone number to continue"
	case identity.StepAwaitApproval:
		return "Your registration is awaiting approval"
	case identity.StepDenied:
		return "Your registration was not approved"
	default:
		return ""
	}
}
