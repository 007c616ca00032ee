package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const validSecret = "0123456789abcdef0123456789abcdef"

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: "+validSecret+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Environment != EnvDevelopment {
		t.Fatalf("Server.Environment = %q, want %q", cfg.Server.Environment, EnvDevelopment)
	}
	if cfg.OTP.CodeTTL != 10*time.Minute {
		t.Fatalf("OTP.CodeTTL = %s, want 10m", cfg.OTP.CodeTTL)
	}
	if cfg.OTP.ResendCooldown != time.Minute {
		t.Fatalf("OTP.ResendCooldown = %s, want 1m", cfg.OTP.ResendCooldown)
	}
	if cfg.OTP.HomeCountry != "ID" {
		t.Fatalf("OTP.HomeCountry = %q, want ID", cfg.OTP.HomeCountry)
	}
	if cfg.Referral.CommissionRate != "0.05" {
		t.Fatalf("Referral.CommissionRate = %q, want 0.05", cfg.Referral.CommissionRate)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: `+validSecret+`
  session_token_ttl: 2h
otp:
  resend_cooldown: 90s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.SessionTokenTTL != 2*time.Hour {
		t.Fatalf("SessionTokenTTL = %s, want 2h", cfg.Auth.SessionTokenTTL)
	}
	if cfg.OTP.ResendCooldown != 90*time.Second {
		t.Fatalf("ResendCooldown = %s, want 90s", cfg.OTP.ResendCooldown)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: short\n")
	t.Setenv("SURFPASS_JWT_SECRET", validSecret)
	t.Setenv("SURFPASS_SUPER_ADMIN_PHONES", "+628111111111,+628122222222")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != validSecret {
		t.Fatalf("JWTSecret was not overridden from env")
	}
	if len(cfg.Auth.SuperAdminPhone) != 2 {
		t.Fatalf("SuperAdminPhone = %v, want 2 entries", cfg.Auth.SuperAdminPhone)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing_secret", body: "server:\n  port: 9000\n", want: "jwt_secret is required"},
		{name: "short_secret", body: "auth:\n  jwt_secret: abc\n", want: "at least 32 characters"},
		{
			name: "production_without_sms",
			body: "server:\n  environment: production\nauth:\n  jwt_secret: " + validSecret + "\n",
			want: "sms.account_sid is required",
		},
		{
			name: "unknown_environment",
			body: "server:\n  environment: staging\nauth:\n  jwt_secret: " + validSecret + "\n",
			want: "server.environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load() error = %v, want substring %q", err, tt.want)
			}
		})
	}
}
