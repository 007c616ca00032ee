package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"surfpass/internal/approval"
	"surfpass/internal/auth"
	"surfpass/internal/blob"
	"surfpass/internal/checkin"
	"surfpass/internal/config"
	"surfpass/internal/constants"
	"surfpass/internal/db"
	"surfpass/internal/identity"
	"surfpass/internal/ledger"
	"surfpass/internal/models"
	"surfpass/internal/otp"
	"surfpass/internal/referral"
	"surfpass/internal/ws"
)

// Services are the domain components the HTTP layer routes to.
type Services struct {
	Database  *db.DB
	OTP       *otp.Manager
	Resolver  *identity.Resolver
	Tokens    *auth.TokenIssuer
	Google    *identity.GoogleProvider // nil when Google sign-in is disabled
	Workflow  *approval.Workflow
	Referrals *referral.Graph
	Ledger    *ledger.Ledger
	Registry  *checkin.Registry
	Blobs     *blob.Service
	Hub       *ws.Hub
}

type Server struct {
	router *chi.Mux
	config *config.Config
	hub    *ws.Hub
}

func NewServer(cfg *config.Config, svc Services) (*Server, error) {
	ipResolver, err := NewClientIPResolver(cfg.Server.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("configuring client ip resolver: %w", err)
	}

	authMiddleware := NewAuthMiddleware(svc.Tokens, svc.Workflow)
	authHandler := NewAuthHandler(
		svc.OTP,
		svc.Resolver,
		svc.Tokens,
		svc.Google,
		svc.Hub,
		cfg.OAuth.Google.RedirectBase,
		cfg.IsProduction(),
	)
	accountHandler := NewAccountHandler(svc.Referrals)
	adminHandler := NewAdminHandler(svc.Workflow, svc.Hub)
	staffHandler := NewStaffHandler(svc.Ledger, svc.Registry, cfg.Server.BaseURL)
	uploadHandler := NewUploadHandler(svc.Blobs, cfg.Server.BaseURL, svc.Blobs.MaxUploadBytes()+(1<<20))
	mediaHandler := NewMediaHandler(svc.Blobs)
	dashboardHandler := NewDashboardHandler(svc.Ledger, svc.Registry)
	wsHandler := NewWebSocketHandler(svc.Hub, authMiddleware, cfg.Server.AllowedOrigins)
	healthHandler := NewHealthHandler(svc.Database)

	staffOnly := RequireRole(models.RoleStaff, models.RoleAdmin)
	jsonBody := maxBodySizeMiddleware(constants.MaxRequestBodyBytes)

	r := chi.NewRouter()
	r.Use(ipResolver.Middleware)
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(jsonBody)

			r.With(RateLimitByIP(5, time.Minute)).Post("/otp/send", authHandler.SendOTP)

			r.With(authMiddleware.RequireAuth).Post("/logout", authHandler.Logout)

			r.Route("/{role}", func(r chi.Router) {
				r.Use(RateLimitByIP(20, time.Minute))
				r.Post("/otp/verify", authHandler.VerifyOTP)
				r.Post("/register", authHandler.Register)
				r.Post("/validate", authHandler.Validate)
				r.Get("/oauth/google/start", authHandler.GoogleStart)
				r.Get("/oauth/google/callback", authHandler.GoogleCallback)
				r.Post("/oauth/verify-phone", authHandler.VerifyPhone)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)

			r.Get("/me", accountHandler.GetMe)
			r.Get("/me/referrals", accountHandler.GetReferrals)
			r.With(jsonBody, RequireRole(models.RoleUser)).Post("/me/referral", accountHandler.AttachReferral)
			r.Get("/dashboard", dashboardHandler.Get)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(models.RoleAdmin), jsonBody)
				r.Get("/registrations", adminHandler.ListPending)
				r.Post("/registrations/{id}/decision", adminHandler.Decide)
				r.Post("/accounts/{id}/active", adminHandler.SetActive)
			})

			r.Route("/staff", func(r chi.Router) {
				r.Use(staffOnly)
				r.With(jsonBody).Post("/expenses", staffHandler.RecordExpense)
				r.With(jsonBody).Patch("/expenses/{id}", staffHandler.AmendExpense)
				r.Get("/expenses", staffHandler.ListExpenses)
				r.With(jsonBody).Post("/scan", staffHandler.Scan)
				r.With(jsonBody).Post("/checkins", staffHandler.CheckIn)
				// Uploads carry their own body limit.
				r.Post("/photos", uploadHandler.UploadReceipt)
			})
		})
	})

	r.Route("/media/{ref}", func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth, staffOnly)
		r.Get("/", mediaHandler.GetReceipt)
		r.Get("/preview", mediaHandler.GetReceiptPreview)
	})

	r.With(RateLimitByIP(10, time.Minute)).Get("/ws", wsHandler.ServeWS)

	return &Server{
		router: r,
		config: cfg,
		hub:    svc.Hub,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Shutdown() {
	if s.hub != nil {
		s.hub.Shutdown()
	}
}

// corsMiddleware allows the configured origins plus loopback origins used
// during local development. Requests without an Origin pass through.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !originAllowed(origin, allowedOrigins) {
				writeError(w, http.StatusForbidden, constants.ErrCodeInvalidRequest, "Origin not allowed")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowedOrigins []string) bool {
	if isLoopbackOrigin(origin) {
		return true
	}
	for _, allowed := range allowedOrigins {
		if originMatchesAllowed(origin, strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

// originMatchesAllowed supports exact matches and a trailing "*" prefix wildcard.
func originMatchesAllowed(origin, allowed string) bool {
	allowed = strings.TrimRight(allowed, "/")
	if prefix, ok := strings.CutSuffix(allowed, "*"); ok {
		return prefix != "" && strings.HasPrefix(origin, prefix)
	}
	return strings.EqualFold(origin, allowed)
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", ClientIP(r),
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
