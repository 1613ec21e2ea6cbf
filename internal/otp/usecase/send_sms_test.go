package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/jacem/otpgate/internal/otp/entity"
)

func TestSendSMSOTPValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.SendSMSOTP(context.Background(), SendSMSOTPInput{Realm: "acme"})
	wantBusiness(t, err, "Phone number is required")

	if _, err := f.uc.SendSMSOTP(context.Background(), SendSMSOTPInput{Realm: "acme", PhoneNumber: "0812345"}); err == nil {
		t.Fatal("expected validation error for non-international number")
	}
}

func TestSendSMSOTPUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.SendSMSOTP(context.Background(), SendSMSOTPInput{Realm: "acme", PhoneNumber: "+6281234567890"})
	wantBusiness(t, err, "User not found")
}

func TestSendSMSOTP(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 5, Realm: "acme", Email: "a@b.com", PhoneNumber: "+6281234567890", Enabled: true})

	out, err := f.uc.SendSMSOTP(context.Background(), SendSMSOTPInput{Realm: "acme", PhoneNumber: "+6281234567890"})
	if err != nil {
		t.Fatalf("SendSMSOTP unexpected error: %v", err)
	}

	if out.Type != entity.PurposeSMS {
		t.Fatalf("type = %s, want sms", out.Type)
	}
	if out.MaskedPhone != "+62*********90" {
		t.Fatalf("masked phone = %q", out.MaskedPhone)
	}

	if len(f.messaging.sms) != 1 {
		t.Fatalf("sms events published = %d, want 1", len(f.messaging.sms))
	}
	evt := f.messaging.sms[0]
	if evt.SessionID != out.SessionID || evt.PhoneNumber != "+6281234567890" || evt.Code == "" {
		t.Fatalf("unexpected sms event: %+v", evt)
	}
	if evt.ExpirySeconds != 600 {
		t.Fatalf("expiry = %d, want 600", evt.ExpirySeconds)
	}

	// The raw code goes to the delivery bridge, never over email.
	if len(f.notifier.sent) != 0 {
		t.Fatal("sms otp must not send mail")
	}
}

func TestSendSMSOTPPublishFailure(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 5, Realm: "acme", Email: "a@b.com", PhoneNumber: "+6281234567890", Enabled: true})
	f.messaging.smsErr = errors.New("broker down")

	_, err := f.uc.SendSMSOTP(context.Background(), SendSMSOTPInput{Realm: "acme", PhoneNumber: "+6281234567890"})
	wantBusiness(t, err, "Failed to send OTP")
}
