package usecase

import (
	"context"
	"testing"

	"github.com/jacem/otpgate/internal/otp/entity"
)

func TestLoginValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme"})
	wantBusiness(t, err, "Email is required")
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme", Email: "ghost@b.com"})
	wantBusiness(t, err, "User not found")
}

func TestLoginDisabledUser(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: false})

	_, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme", Email: "a@b.com"})
	wantBusiness(t, err, "User not found")
}

func TestLoginGateWaived(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", EmailVerified: true, Enabled: true})
	f.db.flows = []entity.FlowExecution{{
		Realm:         "acme",
		FlowAlias:     "browser-otp",
		Requirement:   entity.RequirementRequired,
		ConditionRole: "otp-users",
	}}

	out, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Login unexpected error: %v", err)
	}

	if out.OTPRequired {
		t.Fatal("gate should have waived the OTP step")
	}
	if out.UserID != 1 || out.Email != "a@b.com" || !out.EmailVerified {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.LoginTimestamp.IsZero() {
		t.Fatal("login timestamp not set")
	}
	if _, ok := f.db.lastLogin[1]; !ok {
		t.Fatal("last login not stamped")
	}
	if len(f.notifier.sent) != 0 {
		t.Fatal("no mail should be sent on a waived gate")
	}
}

func TestLoginTwoPhase(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	start, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("phase 1 unexpected error: %v", err)
	}
	if !start.OTPRequired || start.SessionID == "" {
		t.Fatalf("unexpected phase 1 output: %+v", start)
	}

	done, err := f.uc.Login(context.Background(), LoginInput{
		Realm: "acme", Email: "a@b.com", OTPCode: f.notifier.lastCode(t),
	})
	if err != nil {
		t.Fatalf("phase 2 unexpected error: %v", err)
	}
	if done.OTPRequired {
		t.Fatal("phase 2 must not demand another code")
	}
	if done.UserID != 1 {
		t.Fatalf("user id = %d, want 1", done.UserID)
	}
	if _, ok := f.db.lastLogin[1]; !ok {
		t.Fatal("last login not stamped")
	}

	if _, err := f.sessions.PendingLogin(context.Background(), "acme", "a@b.com"); err == nil {
		t.Fatal("pending login not cleared")
	}
}

func TestLoginPhaseOneReusesPendingSession(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	first, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("first phase 1 unexpected error: %v", err)
	}
	second, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("second phase 1 unexpected error: %v", err)
	}

	if first.SessionID != second.SessionID {
		t.Fatalf("repeat phase 1 created a new session: %q != %q", first.SessionID, second.SessionID)
	}
}

func TestLoginCompleteWithoutStart(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	_, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme", Email: "a@b.com", OTPCode: "123456"})
	wantBusiness(t, err, "Login not initiated for this session")
}

func TestLoginCompleteWrongCode(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	if _, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme", Email: "a@b.com"}); err != nil {
		t.Fatalf("phase 1 unexpected error: %v", err)
	}

	_, err := f.uc.Login(context.Background(), LoginInput{Realm: "acme", Email: "a@b.com", OTPCode: "not-it"})
	wantBusiness(t, err, "Invalid or expired OTP code")

	// The attempt survives a typo; the real code still completes it.
	done, err := f.uc.Login(context.Background(), LoginInput{
		Realm: "acme", Email: "a@b.com", OTPCode: f.notifier.lastCode(t),
	})
	if err != nil {
		t.Fatalf("retry unexpected error: %v", err)
	}
	if done.UserID != 1 {
		t.Fatalf("user id = %d, want 1", done.UserID)
	}
}
