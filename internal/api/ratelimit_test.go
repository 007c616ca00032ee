package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"surfpass/internal/constants"
)

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name   string
		window time.Duration
		want   int
	}{
		{name: "zero", window: 0, want: 1},
		{name: "negative", window: -time.Second, want: 1},
		{name: "fractional_rounds_up", window: 1500 * time.Millisecond, want: 2},
		{name: "whole_second", window: time.Second, want: 1},
		{name: "minute", window: time.Minute, want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfterSeconds(tt.window); got != tt.want {
				t.Fatalf("retryAfterSeconds(%s) = %d, want %d", tt.window, got, tt.want)
			}
		})
	}
}

func TestRateLimitByIPRejectsAfterLimit(t *testing.T) {
	resolver, err := NewClientIPResolver(nil)
	if err != nil {
		t.Fatalf("NewClientIPResolver error: %v", err)
	}
	handler := resolver.Middleware(RateLimitByIP(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/otp/send", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("203.0.113.7:1000"); rr.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d, want %d", i, rr.Code, http.StatusNoContent)
		}
	}

	rr := send("203.0.113.7:1001")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want %q", got, "60")
	}
	var resp Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if resp.Success || len(resp.Errors) != 1 || resp.Errors[0].Code != constants.ErrCodeRateLimited {
		t.Fatalf("unexpected envelope: %+v", resp)
	}

	if rr := send("198.51.100.9:1000"); rr.Code != http.StatusNoContent {
		t.Fatalf("other client status = %d, want %d", rr.Code, http.StatusNoContent)
	}
}
