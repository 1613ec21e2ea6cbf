package usecase

import (
	"context"
	"testing"

	"github.com/jacem/otpgate/internal/otp/entity"
)

func TestSendEmailOTPValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.SendEmailOTP(context.Background(), SendEmailOTPInput{Realm: "acme"})
	wantBusiness(t, err, "Email is required")

	if _, err := f.uc.SendEmailOTP(context.Background(), SendEmailOTPInput{Realm: "acme", Email: "not-an-email"}); err == nil {
		t.Fatal("expected validation error for malformed email")
	}
}

func TestSendEmailOTPUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.SendEmailOTP(context.Background(), SendEmailOTPInput{Realm: "acme", Email: "ghost@b.com"})
	wantBusiness(t, err, "User not found")
}

func TestSendEmailOTP(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 3, Realm: "acme", Email: "a@b.com", Enabled: true})

	out, err := f.uc.SendEmailOTP(context.Background(), SendEmailOTPInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("SendEmailOTP unexpected error: %v", err)
	}

	if out.SessionID == "" {
		t.Fatal("empty session id")
	}
	if out.Type != entity.PurposeEmail {
		t.Fatalf("type = %s, want email", out.Type)
	}
	if out.ExpirySeconds != 600 {
		t.Fatalf("expiry = %d, want 600", out.ExpirySeconds)
	}

	h := entity.SessionHandle{Realm: "acme", ID: out.SessionID}
	userID, err := f.sessions.User(context.Background(), h)
	if err != nil || userID != 3 {
		t.Fatalf("bound user = %d (%v), want 3", userID, err)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(f.notifier.sent))
	}
}
