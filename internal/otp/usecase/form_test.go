package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/jacem/otpgate/internal/otp/entity"
)

func TestFormChallengeUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.FormChallenge(context.Background(), FormChallengeInput{Realm: "acme", Email: "ghost@b.com"})
	wantBusiness(t, err, "User not found")
}

func TestFormChallengeGateWaived(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})
	f.db.flows = []entity.FlowExecution{{
		Realm:         "acme",
		FlowAlias:     "browser-otp",
		Requirement:   entity.RequirementRequired,
		ConditionRole: "otp-users",
	}}

	state, err := f.uc.FormChallenge(context.Background(), FormChallengeInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("FormChallenge unexpected error: %v", err)
	}
	if state.Required || !state.Done {
		t.Fatalf("unexpected state: %+v", state)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatal("no mail should be sent on a waived gate")
	}
}

func TestFormChallenge(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	state, err := f.uc.FormChallenge(context.Background(), FormChallengeInput{Realm: "acme", Email: "A@B.com"})
	if err != nil {
		t.Fatalf("FormChallenge unexpected error: %v", err)
	}
	if !state.Required || state.Done || state.SessionID == "" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.Email != "a@b.com" {
		t.Fatalf("email = %q, want lowercased a@b.com", state.Email)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("mails sent = %d, want 1", len(f.notifier.sent))
	}
}

func TestFormSubmitEmptyCode(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	ch, err := f.uc.FormChallenge(context.Background(), FormChallengeInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("FormChallenge unexpected error: %v", err)
	}

	state, err := f.uc.FormSubmit(context.Background(), FormSubmitInput{Realm: "acme", SessionID: ch.SessionID, Code: "  "})
	if err != nil {
		t.Fatalf("FormSubmit unexpected error: %v", err)
	}
	if state.Done || state.ErrorMessage != "" || state.NoticeMessage != "" {
		t.Fatalf("empty submission must re-render unchanged: %+v", state)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatal("empty submission must not rotate the code")
	}
}

func TestFormSubmitWrongCode(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	ch, err := f.uc.FormChallenge(context.Background(), FormChallengeInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("FormChallenge unexpected error: %v", err)
	}

	state, err := f.uc.FormSubmit(context.Background(), FormSubmitInput{Realm: "acme", SessionID: ch.SessionID, Code: "WRONG1"})
	if err != nil {
		t.Fatalf("FormSubmit unexpected error: %v", err)
	}
	if state.ErrorMessage != "Invalid OTP code" {
		t.Fatalf("error message = %q", state.ErrorMessage)
	}
	if state.Done {
		t.Fatal("wrong code must not complete the flow")
	}
}

func TestFormSubmitValidCode(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	ch, err := f.uc.FormChallenge(context.Background(), FormChallengeInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("FormChallenge unexpected error: %v", err)
	}

	state, err := f.uc.FormSubmit(context.Background(), FormSubmitInput{
		Realm: "acme", SessionID: ch.SessionID, Code: f.notifier.lastCode(t),
	})
	if err != nil {
		t.Fatalf("FormSubmit unexpected error: %v", err)
	}
	if !state.Done {
		t.Fatalf("unexpected state: %+v", state)
	}
	if len(f.db.emailVerified) != 1 || f.db.emailVerified[0] != 1 {
		t.Fatalf("email verified calls = %v, want [1]", f.db.emailVerified)
	}
}

func TestFormSubmitExpiredCodeRegenerates(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	ch, err := f.uc.FormChallenge(context.Background(), FormChallengeInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("FormChallenge unexpected error: %v", err)
	}
	stale := f.notifier.lastCode(t)

	f.clock.now = f.clock.now.Add(10*time.Minute + time.Second)

	state, err := f.uc.FormSubmit(context.Background(), FormSubmitInput{Realm: "acme", SessionID: ch.SessionID, Code: stale})
	if err != nil {
		t.Fatalf("FormSubmit unexpected error: %v", err)
	}
	if state.NoticeMessage != "Your code expired, a new one has been sent" {
		t.Fatalf("notice = %q", state.NoticeMessage)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("mails sent = %d, want 2", len(f.notifier.sent))
	}

	// The replacement code completes the flow.
	state, err = f.uc.FormSubmit(context.Background(), FormSubmitInput{
		Realm: "acme", SessionID: ch.SessionID, Code: f.notifier.lastCode(t),
	})
	if err != nil {
		t.Fatalf("retry FormSubmit unexpected error: %v", err)
	}
	if !state.Done {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestFormResend(t *testing.T) {
	f := newFixture(t, &entity.User{ID: 1, Realm: "acme", Email: "a@b.com", Enabled: true})

	ch, err := f.uc.FormChallenge(context.Background(), FormChallengeInput{Realm: "acme", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("FormChallenge unexpected error: %v", err)
	}

	state, err := f.uc.FormResend(context.Background(), FormResendInput{Realm: "acme", SessionID: ch.SessionID})
	if err != nil {
		t.Fatalf("FormResend unexpected error: %v", err)
	}
	if state.NoticeMessage != "A new code has been sent to your email" {
		t.Fatalf("notice = %q", state.NoticeMessage)
	}
	if len(f.notifier.sent) != 2 {
		t.Fatalf("mails sent = %d, want 2", len(f.notifier.sent))
	}

	state, err = f.uc.FormSubmit(context.Background(), FormSubmitInput{
		Realm: "acme", SessionID: ch.SessionID, Code: f.notifier.lastCode(t),
	})
	if err != nil {
		t.Fatalf("FormSubmit unexpected error: %v", err)
	}
	if !state.Done {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestFormSubmitUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.FormSubmit(context.Background(), FormSubmitInput{Realm: "acme", SessionID: "nope", Code: "ABC123"})
	wantBusiness(t, err, "No authentication session found")

	_, err = f.uc.FormSubmit(context.Background(), FormSubmitInput{Realm: "acme", Code: "ABC123"})
	wantBusiness(t, err, "Invalid session ID")
}
