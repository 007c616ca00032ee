package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTwilioServiceSendPostsForm(t *testing.T) {
	var gotPath, gotTo, gotBody, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := NewTwilioService(srv.URL, "AC123", "secret", "+15005550006", time.Second)
	if err := svc.Send(context.Background(), "+628123456789", "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotUser != "AC123" || gotTo != "+628123456789" || gotBody != "hello" {
		t.Fatalf("user=%q to=%q body=%q", gotUser, gotTo, gotBody)
	}
}

func TestTwilioServiceSendSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := NewTwilioService(srv.URL, "AC123", "secret", "+15005550006", time.Second)
	err := svc.Send(context.Background(), "+628123456789", "hello")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("Send() error = %v, want provider status in error", err)
	}
}

func TestOTPMessage(t *testing.T) {
	msg := OTPMessage("Surfpass", "123456", 10*time.Minute)
	if !strings.Contains(msg, "123456") || !strings.Contains(msg, "10 minutes") {
		t.Fatalf("OTPMessage() = %q", msg)
	}
}
