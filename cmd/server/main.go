package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"surfpass/internal/api"
	"surfpass/internal/approval"
	"surfpass/internal/auth"
	"surfpass/internal/blob"
	"surfpass/internal/checkin"
	"surfpass/internal/config"
	"surfpass/internal/db"
	"surfpass/internal/email"
	"surfpass/internal/identity"
	"surfpass/internal/ledger"
	"surfpass/internal/otp"
	"surfpass/internal/referral"
	"surfpass/internal/sms"
	"surfpass/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	})))

	slog.Info("starting server", "name", cfg.Server.Name, "environment", cfg.Server.Environment)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	blobService, err := blob.NewService(cfg.Storage.BlobRoot, cfg.Storage.UploadMaxBytes)
	if err != nil {
		slog.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	slog.Info("blob storage initialized", "root", cfg.Storage.BlobRoot, "upload_max_bytes", cfg.Storage.UploadMaxBytes)

	accounts := db.NewAccountRepository(database)
	expenses := db.NewExpenseRepository(database)
	challenges := db.NewOTPChallengeRepository(database)
	revoked := db.NewRevokedTokenRepository(database)

	ids, err := db.NewAccountIDGenerator(cfg.Server.NodeID)
	if err != nil {
		slog.Error("failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	rate, err := referral.ParseRate(cfg.Referral.CommissionRate)
	if err != nil {
		slog.Error("invalid referral commission rate", "error", err)
		os.Exit(1)
	}

	cleanupService := db.NewCleanupService(challenges, revoked, cfg.OTP.SendWindow)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go cleanupService.Start(cleanupCtx)

	var sender sms.Sender = sms.LogSender{}
	if cfg.SMS.AccountSID != "" {
		sender = sms.NewTwilioService(cfg.SMS.BaseURL, cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From, cfg.SMS.Timeout)
		slog.Info("sms configured", "base_url", cfg.SMS.BaseURL, "from", cfg.SMS.From)
	} else {
		slog.Warn("sms not configured, verification codes are only logged")
	}

	// The notifier stays a nil interface unless SMTP is configured.
	var notifier approval.Notifier
	if cfg.Email.SMTP.Host != "" {
		notifier = email.NewSMTPService(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
			cfg.Email.SMTP.From,
			cfg.Server.Name,
		)
		slog.Info("email configured", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)
	}

	var google *identity.GoogleProvider
	if cfg.OAuth.Google.Enabled() {
		google = identity.NewGoogleProvider(cfg.OAuth.Google.ClientID, cfg.OAuth.Google.ClientSecret)
		slog.Info("google sign-in enabled", "redirect_base", cfg.OAuth.Google.RedirectBase)
	}

	hub := ws.NewHub()
	go hub.Run()

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenTTL, cfg.Auth.PendingTokenTTL, revoked)
	otpManager := otp.NewManager(database, challenges, sender, cfg.OTP,
		otp.WithProduction(cfg.IsProduction()),
		otp.WithServerName(cfg.Server.Name),
	)
	graph := referral.NewGraph(accounts, expenses, rate)

	server, err := api.NewServer(cfg, api.Services{
		Database:  database,
		OTP:       otpManager,
		Resolver:  identity.NewResolver(accounts, ids, otpManager, tokens, graph, cfg.OTP.DefaultCountryHint, cfg.Auth.SuperAdminPhone),
		Tokens:    tokens,
		Google:    google,
		Workflow:  approval.NewWorkflow(accounts, notifier),
		Referrals: graph,
		Ledger:    ledger.New(expenses, accounts, blobService, hub),
		Registry:  checkin.NewRegistry(db.NewCheckInRepository(database), accounts, hub),
		Blobs:     blobService,
		Hub:       hub,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	cleanupCancel()

	server.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
