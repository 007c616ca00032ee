package api

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"surfpass/internal/approval"
	"surfpass/internal/auth"
	"surfpass/internal/models"
)

type contextKey string

const (
	accountKey contextKey = "account"
	claimsKey  contextKey = "claims"
)

type AuthMiddleware struct {
	tokens   *auth.TokenIssuer
	workflow *approval.Workflow
}

func NewAuthMiddleware(tokens *auth.TokenIssuer, workflow *approval.Workflow) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, workflow: workflow}
}

// authenticate resolves a raw session token to an account that may act.
func (m *AuthMiddleware) authenticate(ctx context.Context, raw string, roles ...models.Role) (*auth.Claims, *models.Account, error) {
	claims, err := m.tokens.Verify(ctx, raw, auth.KindSession, roles...)
	if err != nil {
		return nil, nil, err
	}
	account, err := m.workflow.Authenticate(ctx, claims)
	if err != nil {
		return nil, nil, err
	}
	return claims, account, nil
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := bearerToken(r)
		if !found {
			unauthenticated(w)
			return
		}

		claims, account, err := m.authenticate(r.Context(), token)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, accountKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole must run after RequireAuth. A token of the wrong role is
// rejected exactly like an invalid one.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := GetAccount(r)
			if account == nil || !slices.Contains(roles, account.Role) {
				unauthenticated(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func GetAccount(r *http.Request) *models.Account {
	if v, ok := r.Context().Value(accountKey).(*models.Account); ok {
		return v
	}
	return nil
}

func getClaims(r *http.Request) *auth.Claims {
	if v, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return v
	}
	return nil
}
