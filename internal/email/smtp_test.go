package email

import (
	"strings"
	"testing"
)

func TestDecisionNotice(t *testing.T) {
	tests := []struct {
		name        string
		approved    bool
		wantSubject string
		wantBody    string
	}{
		{name: "approved", approved: true, wantSubject: "approved", wantBody: "has been approved"},
		{name: "denied", approved: false, wantSubject: "registration", wantBody: "was not approved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := decisionNotice("Surfpass", "Budi", "STAFF", tt.approved)
			if !strings.Contains(subject, tt.wantSubject) {
				t.Fatalf("subject = %q, want it to contain %q", subject, tt.wantSubject)
			}
			if !strings.Contains(body, tt.wantBody) || !strings.Contains(body, "Hi Budi") {
				t.Fatalf("body = %q", body)
			}
		})
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	s := NewSMTPService("smtp.example.com", 587, "", "", "noreply@example.com", "Surfpass")
	msg := s.buildMessage("budi@example.com", "Hello", "Body")

	for _, want := range []string{"From: noreply@example.com\r\n", "To: budi@example.com\r\n", "Subject: Hello\r\n", "\r\n\r\nBody"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q: %q", want, msg)
		}
	}
}
