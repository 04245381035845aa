package messaging

import (
	"context"
	"testing"
)

func TestCanonicalizeRecipient(t *testing.T) {
	tests := []struct {
		name      string
		recipient string
		want      string
		wantErr   bool
	}{
		{name: "plain digits", recipient: "821012345678", want: "821012345678"},
		{name: "e164 prefix stripped", recipient: "+82-10-1234-5678", want: "821012345678"},
		{name: "spaces and parens", recipient: "(010) 1234 5678", want: "01012345678"},
		{name: "empty", recipient: "", wantErr: true},
		{name: "no digits", recipient: "not-a-number", wantErr: true},
		{name: "too short", recipient: "12345", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonicalizeRecipient(tt.recipient)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("canonicalizeRecipient(%q) expected error, got %q", tt.recipient, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("canonicalizeRecipient(%q) unexpected error: %v", tt.recipient, err)
			}
			if got != tt.want {
				t.Errorf("canonicalizeRecipient(%q) = %q, want %q", tt.recipient, got, tt.want)
			}
		})
	}
}

func TestNewTwilioSenderRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioSender(); err == nil {
		t.Error("expected error when credentials are missing")
	}
	if _, err := NewTwilioSender(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("expected error when from number is missing")
	}
	if _, err := NewTwilioSender(WithAccountSID("AC123"), WithAuthToken("token"), WithFromNumber("+15550001111")); err != nil {
		t.Errorf("unexpected error with full credentials: %v", err)
	}
}

func TestNoopSender(t *testing.T) {
	s := NewNoopSender()

	if err := s.SendMessage(context.Background(), "+82 10 1234 5678", "hello"); err != nil {
		t.Errorf("SendMessage with valid recipient failed: %v", err)
	}
	if err := s.SendMessage(context.Background(), "bogus", "hello"); err == nil {
		t.Error("SendMessage with invalid recipient should fail")
	}
}
