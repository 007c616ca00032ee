package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"surfpass/internal/models"
)

// ErrUnauthenticated is the only error Verify returns for a rejected token.
var ErrUnauthenticated = errors.New("unauthenticated")

type TokenKind string

const (
	KindSession      TokenKind = "session"
	KindRegistration TokenKind = "registration"
	KindPhoneVerify  TokenKind = "phone_verify"
)

// RevocationStore remembers revoked token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Claims struct {
	Role models.Role `json:"role"`
	Kind TokenKind   `json:"kind"`

	// Registration and phone-verify tokens carry the identity gathered so far.
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"name,omitempty"`

	jwt.RegisteredClaims
}

// AccountID returns the subject of a session token.
func (c *Claims) AccountID() string {
	return c.Subject
}

// PendingRegistration is the verified identity a registration token vouches for.
type PendingRegistration struct {
	Role     models.Role
	Phone    string
	Email    string
	FullName string
}

type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type TokenIssuer struct {
	secret     []byte
	sessionTTL time.Duration
	pendingTTL time.Duration
	revoked    RevocationStore
	now        func() time.Time
}

type Option func(*TokenIssuer)

// WithClock replaces time.Now for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(s *TokenIssuer) { s.now = now }
}

func NewTokenIssuer(secret string, sessionTTL, pendingTTL time.Duration, revoked RevocationStore, opts ...Option) *TokenIssuer {
	s := &TokenIssuer{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		pendingTTL: pendingTTL,
		revoked:    revoked,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenIssuer) IssueSession(accountID string, role models.Role) (*Token, error) {
	return s.sign(Claims{Role: role, Kind: KindSession}, accountID, s.sessionTTL)
}

func (s *TokenIssuer) IssueRegistration(p PendingRegistration) (*Token, error) {
	return s.sign(Claims{
		Role:     p.Role,
		Kind:     KindRegistration,
		Phone:    p.Phone,
		Email:    p.Email,
		FullName: p.FullName,
	}, "", s.pendingTTL)
}

// IssuePhoneVerify vouches for an OAuth identity that still needs a verified
// phone number before it can log in or register.
func (s *TokenIssuer) IssuePhoneVerify(role models.Role, email, fullName string) (*Token, error) {
	return s.sign(Claims{
		Role:     role,
		Kind:     KindPhoneVerify,
		Email:    email,
		FullName: fullName,
	}, "", s.pendingTTL)
}

func (s *TokenIssuer) sign(claims Claims, subject string, ttl time.Duration) (*Token, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing %s token: %w", claims.Kind, err)
	}
	return &Token{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify checks signature, expiry, kind, revocation and, when roles is not
// empty, that the token's role is one of them.
func (s *TokenIssuer) Verify(ctx context.Context, raw string, kind TokenKind, roles ...models.Role) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrUnauthenticated
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrUnauthenticated
	}
	if claims.Kind != kind {
		return nil, ErrUnauthenticated
	}
	if kind == KindSession && claims.Subject == "" {
		return nil, ErrUnauthenticated
	}
	if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
		return nil, ErrUnauthenticated
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		return nil, ErrUnauthenticated
	}

	return claims, nil
}

// Revoke makes claims unusable for the rest of their lifetime. It returns
// ErrUnauthenticated when the token had already been revoked, which is how
// single-use registration tokens are enforced.
func (s *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	fresh, err := s.revoked.Revoke(ctx, claims.ID, expiresAt)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	if !fresh {
		return ErrUnauthenticated
	}
	return nil
}
