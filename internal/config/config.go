package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"surfpass/internal/constants"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	OTP      OTPConfig      `yaml:"otp"`
	SMS      SMSConfig      `yaml:"sms"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Email    EmailConfig    `yaml:"email"`
	Storage  StorageConfig  `yaml:"storage"`
	Referral ReferralConfig `yaml:"referral"`
}

type ServerConfig struct {
	Name              string   `yaml:"name"`
	Host              string   `yaml:"host" env:"SURFPASS_HOST"`
	Port              int      `yaml:"port" env:"SURFPASS_PORT"`
	BaseURL           string   `yaml:"base_url" env:"SURFPASS_BASE_URL"`
	Environment       string   `yaml:"environment" env:"SURFPASS_ENV"`
	LogLevel          string   `yaml:"log_level" env:"SURFPASS_LOG_LEVEL"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
	AllowedOrigins    []string `yaml:"allowed_origins" env:"SURFPASS_ALLOWED_ORIGINS" envSeparator:","`
	NodeID            int64    `yaml:"node_id" env:"SURFPASS_NODE_ID"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"SURFPASS_DB_PATH"`
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"SURFPASS_JWT_SECRET"`
	SessionTokenTTL time.Duration `yaml:"session_token_ttl"`
	PendingTokenTTL time.Duration `yaml:"pending_token_ttl"`
	SuperAdminPhone []string      `yaml:"super_admin_phones" env:"SURFPASS_SUPER_ADMIN_PHONES" envSeparator:","`
}

type OTPConfig struct {
	CodeTTL            time.Duration `yaml:"code_ttl"`
	ResendCooldown     time.Duration `yaml:"resend_cooldown"`
	MaxAttempts        int           `yaml:"max_attempts"`
	SendWindow         time.Duration `yaml:"send_window"`
	HomeCountry        string        `yaml:"home_country"`
	HomeCountrySends   int           `yaml:"home_country_sends"`
	ForeignSends       int           `yaml:"foreign_sends"`
	DefaultCountryHint string        `yaml:"default_country_hint"`
}

// SMSConfig configures a Twilio-compatible messaging endpoint. When AccountSID
// is empty, codes are only logged.
type SMSConfig struct {
	BaseURL    string        `yaml:"base_url"`
	AccountSID string        `yaml:"account_sid" env:"SURFPASS_SMS_ACCOUNT_SID"`
	AuthToken  string        `yaml:"auth_token" env:"SURFPASS_SMS_AUTH_TOKEN"`
	From       string        `yaml:"from" env:"SURFPASS_SMS_FROM"`
	Timeout    time.Duration `yaml:"timeout"`
}

type OAuthConfig struct {
	Google GoogleConfig `yaml:"google"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id" env:"SURFPASS_GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"SURFPASS_GOOGLE_CLIENT_SECRET"`
	RedirectBase string `yaml:"redirect_base"`
}

func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type EmailConfig struct {
	SMTP SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password" env:"SURFPASS_SMTP_PASSWORD"`
	From     string `yaml:"from"`
}

type StorageConfig struct {
	BlobRoot       string `yaml:"blob_root" env:"SURFPASS_BLOB_ROOT"`
	UploadMaxBytes int64  `yaml:"upload_max_bytes"`
}

type ReferralConfig struct {
	// CommissionRate is a decimal fraction, e.g. "0.05".
	CommissionRate string `yaml:"commission_rate"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	switch c.Server.Environment {
	case "", EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("server.environment must be %q or %q", EnvDevelopment, EnvProduction)
	}
	if c.Server.Environment == EnvProduction && c.SMS.AccountSID == "" {
		return fmt.Errorf("sms.account_sid is required in production")
	}
	if c.Email.SMTP.Host != "" && c.Email.SMTP.From == "" {
		return fmt.Errorf("email.smtp.from is required when email.smtp.host is set")
	}
	if c.Server.NodeID < 0 || c.Server.NodeID > 1023 {
		return fmt.Errorf("server.node_id must be between 0 and 1023")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "Surfpass"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
	}
	if c.Server.Environment == "" {
		c.Server.Environment = EnvDevelopment
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.NodeID == 0 {
		c.Server.NodeID = 1
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/surfpass.db"
	}
	if c.Auth.SessionTokenTTL == 0 {
		c.Auth.SessionTokenTTL = 12 * time.Hour
	}
	if c.Auth.PendingTokenTTL == 0 {
		c.Auth.PendingTokenTTL = constants.RegistrationTokenTTL
	}
	if c.OTP.CodeTTL == 0 {
		c.OTP.CodeTTL = constants.OTPCodeTTL
	}
	if c.OTP.ResendCooldown == 0 {
		c.OTP.ResendCooldown = constants.OTPResendCooldown
	}
	if c.OTP.MaxAttempts == 0 {
		c.OTP.MaxAttempts = constants.OTPMaxAttempts
	}
	if c.OTP.SendWindow == 0 {
		c.OTP.SendWindow = constants.OTPSendWindow
	}
	if c.OTP.HomeCountry == "" {
		c.OTP.HomeCountry = "ID"
	}
	c.OTP.HomeCountry = strings.ToUpper(c.OTP.HomeCountry)
	if c.OTP.HomeCountrySends == 0 {
		c.OTP.HomeCountrySends = constants.OTPHomeCountrySends
	}
	if c.OTP.ForeignSends == 0 {
		c.OTP.ForeignSends = constants.OTPForeignSends
	}
	if c.OTP.DefaultCountryHint == "" {
		c.OTP.DefaultCountryHint = c.OTP.HomeCountry
	}
	if c.SMS.BaseURL == "" {
		c.SMS.BaseURL = "https://api.twilio.com"
	}
	if c.SMS.Timeout == 0 {
		c.SMS.Timeout = 10 * time.Second
	}
	if c.OAuth.Google.RedirectBase == "" {
		c.OAuth.Google.RedirectBase = c.Server.BaseURL
	}
	if c.Storage.BlobRoot == "" {
		c.Storage.BlobRoot = "./data/blobs"
	}
	if c.Storage.UploadMaxBytes == 0 {
		c.Storage.UploadMaxBytes = 8 << 20
	}
	if c.Referral.CommissionRate == "" {
		c.Referral.CommissionRate = "0.05"
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}
