package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers a text message to an E.164 number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioService posts to a Twilio-compatible Messages endpoint.
type TwilioService struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

func NewTwilioService(baseURL, accountSID, authToken, from string, timeout time.Duration) *TwilioService {
	return &TwilioService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *TwilioService) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building sms request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// LogSender only logs. It is used when no provider is configured outside
// production.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, body string) error {
	slog.Info("sms delivery skipped, no provider configured", "component", "sms", "to", to, "body", body)
	return nil
}

// OTPMessage is the text sent for a login code.
func OTPMessage(serverName, code string, ttl time.Duration) string {
	return fmt.Sprintf("%s: your verification code is %s. It expires in %d minutes. Do not share it with anyone.",
		serverName, code, int(ttl.Minutes()))
}
