package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIPResolverResolve(t *testing.T) {
	tests := []struct {
		name      string
		trusted   []string
		remote    string
		forwarded string
		realIP    string
		want      string
	}{
		{
			name:      "direct peer ignores headers",
			remote:    "203.0.113.7:43210",
			forwarded: "198.51.100.5",
			realIP:    "198.51.100.6",
			want:      "203.0.113.7",
		},
		{
			name:      "trusted proxy uses forwarded client",
			trusted:   []string{"172.30.0.10/32"},
			remote:    "172.30.0.10:12345",
			forwarded: "198.51.100.8",
			want:      "198.51.100.8",
		},
		{
			name:      "spoofed leftmost hop is skipped",
			trusted:   []string{"10.0.0.0/8"},
			remote:    "10.0.0.2:80",
			forwarded: "1.2.3.4, 198.51.100.9, 10.0.0.7",
			want:      "198.51.100.9",
		},
		{
			name:    "bare address counts as a host prefix",
			trusted: []string{"172.30.0.10"},
			remote:  "172.30.0.10:12345",
			realIP:  "198.51.100.10",
			want:    "198.51.100.10",
		},
		{
			name:      "unparseable chain falls back to real ip",
			trusted:   []string{"172.30.0.10/32"},
			remote:    "172.30.0.10:12345",
			forwarded: "not-an-ip",
			realIP:    "198.51.100.10",
			want:      "198.51.100.10",
		},
		{
			name:    "trusted proxy without headers is the client",
			trusted: []string{"172.30.0.10/32"},
			remote:  "172.30.0.10:12345",
			want:    "172.30.0.10",
		},
		{
			name:   "ipv6 peer",
			remote: "[2001:db8::1]:443",
			want:   "2001:db8::1",
		},
		{
			name:   "garbage remote addr",
			remote: "pipe",
			want:   unknownClientIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, err := NewClientIPResolver(tt.trusted)
			if err != nil {
				t.Fatalf("NewClientIPResolver() error = %v", err)
			}

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			if got := resolver.Resolve(req); got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewClientIPResolverRejectsBadCIDR(t *testing.T) {
	if _, err := NewClientIPResolver([]string{"10.0.0.0/33"}); err == nil {
		t.Fatal("NewClientIPResolver() error = nil, want error")
	}
}

func TestClientIPMiddlewareStoresAddress(t *testing.T) {
	resolver, err := NewClientIPResolver(nil)
	if err != nil {
		t.Fatalf("NewClientIPResolver() error = %v", err)
	}

	var got string
	handler := resolver.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = ClientIP(r)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/otp/send", nil)
	req.RemoteAddr = "203.0.113.40:5000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "203.0.113.40" {
		t.Fatalf("ClientIP() = %q, want 203.0.113.40", got)
	}
	if ClientIP(req) != unknownClientIP {
		t.Fatal("ClientIP() outside the middleware should be unknown")
	}
}
