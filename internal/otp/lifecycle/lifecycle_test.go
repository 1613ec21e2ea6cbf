package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/pkg/otpgen"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type fakeNotes struct {
	notes map[string]map[string]string
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{notes: map[string]map[string]string{}}
}

func (f *fakeNotes) bag(h entity.SessionHandle) map[string]string {
	key := h.Realm + "/" + h.ID
	if f.notes[key] == nil {
		f.notes[key] = map[string]string{}
	}
	return f.notes[key]
}

func (f *fakeNotes) GetNote(_ context.Context, h entity.SessionHandle, key string) (string, error) {
	v, ok := f.bag(h)[key]
	if !ok {
		return "", goerror.ErrNotFound
	}
	return v, nil
}

func (f *fakeNotes) SetNote(_ context.Context, h entity.SessionHandle, key, value string) error {
	f.bag(h)[key] = value
	return nil
}

func (f *fakeNotes) RemoveNote(_ context.Context, h entity.SessionHandle, key string) error {
	delete(f.bag(h), key)
	return nil
}

func newTestEngine() (*Engine, *fakeNotes, *fakeClock) {
	notes := newFakeNotes()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return NewEngine(notes, otpgen.NewRandom(), clk), notes, clk
}

var testOpts = IssueOptions{
	Alphabet: otpgen.AlphabetNumeric,
	Length:   6,
	TTL:      10 * time.Minute,
}

func TestIssueIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	first, err := engine.Issue(context.Background(), h, entity.PurposeEmail, testOpts)
	if err != nil {
		t.Fatalf("first Issue unexpected error: %v", err)
	}
	second, err := engine.Issue(context.Background(), h, entity.PurposeEmail, testOpts)
	if err != nil {
		t.Fatalf("second Issue unexpected error: %v", err)
	}

	if first != second {
		t.Fatalf("re-issue rotated the code: %q != %q", first, second)
	}
}

func TestIssueForceRegenerates(t *testing.T) {
	engine, _, _ := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	first, err := engine.Issue(context.Background(), h, entity.PurposeEmail, testOpts)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	forced := testOpts
	forced.Force = true
	second, err := engine.Issue(context.Background(), h, entity.PurposeEmail, forced)
	if err != nil {
		t.Fatalf("forced Issue unexpected error: %v", err)
	}

	outcome, err := engine.Verify(context.Background(), h, entity.PurposeEmail, second, testOpts.TTL)
	if err != nil {
		t.Fatalf("Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeValid {
		t.Fatalf("new code outcome = %s, want valid", outcome)
	}

	// The first code must be dead after regeneration, whether equal or not.
	if first == second {
		return
	}
	outcome, err = engine.Verify(context.Background(), h, entity.PurposeEmail, first, testOpts.TTL)
	if err != nil {
		t.Fatalf("Verify unexpected error: %v", err)
	}
	if outcome == entity.OutcomeValid {
		t.Fatalf("replaced code still validates")
	}
}

func TestVerifySingleUse(t *testing.T) {
	engine, _, _ := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	code, err := engine.Issue(context.Background(), h, entity.PurposeLogin, testOpts)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	outcome, err := engine.Verify(context.Background(), h, entity.PurposeLogin, code, testOpts.TTL)
	if err != nil {
		t.Fatalf("Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeValid {
		t.Fatalf("first outcome = %s, want valid", outcome)
	}

	outcome, err = engine.Verify(context.Background(), h, entity.PurposeLogin, code, testOpts.TTL)
	if err != nil {
		t.Fatalf("second Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeNotFound {
		t.Fatalf("second outcome = %s, want not_found", outcome)
	}
}

func TestVerifyMismatchKeepsRecord(t *testing.T) {
	engine, _, _ := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	code, err := engine.Issue(context.Background(), h, entity.PurposeLogin, testOpts)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	outcome, err := engine.Verify(context.Background(), h, entity.PurposeLogin, "wrong!", testOpts.TTL)
	if err != nil {
		t.Fatalf("Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeInvalid {
		t.Fatalf("outcome = %s, want invalid", outcome)
	}

	outcome, err = engine.Verify(context.Background(), h, entity.PurposeLogin, code, testOpts.TTL)
	if err != nil {
		t.Fatalf("retry Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeValid {
		t.Fatalf("retry outcome = %s, want valid", outcome)
	}
}

func TestVerifyExpiryBoundaryInclusive(t *testing.T) {
	engine, _, clk := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	code, err := engine.Issue(context.Background(), h, entity.PurposeLogin, testOpts)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	// Exactly at createdAt+ttl the code is still valid.
	clk.now = clk.now.Add(testOpts.TTL)
	outcome, err := engine.Verify(context.Background(), h, entity.PurposeLogin, code, testOpts.TTL)
	if err != nil {
		t.Fatalf("Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeValid {
		t.Fatalf("outcome at boundary = %s, want valid", outcome)
	}
}

func TestVerifyExpiredDeletesRecord(t *testing.T) {
	engine, _, clk := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	code, err := engine.Issue(context.Background(), h, entity.PurposeLogin, testOpts)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	clk.now = clk.now.Add(testOpts.TTL + time.Second)
	outcome, err := engine.Verify(context.Background(), h, entity.PurposeLogin, code, testOpts.TTL)
	if err != nil {
		t.Fatalf("Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeExpired {
		t.Fatalf("outcome past boundary = %s, want expired", outcome)
	}

	// The record was deleted; a corrected retry cannot resurrect it.
	outcome, err = engine.Verify(context.Background(), h, entity.PurposeLogin, code, testOpts.TTL)
	if err != nil {
		t.Fatalf("retry Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeNotFound {
		t.Fatalf("retry outcome = %s, want not_found", outcome)
	}
}

func TestVerifyPurposeIsolation(t *testing.T) {
	engine, _, _ := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	code, err := engine.Issue(context.Background(), h, entity.PurposeEmail, testOpts)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	outcome, err := engine.Verify(context.Background(), h, entity.PurposeSMS, code, testOpts.TTL)
	if err != nil {
		t.Fatalf("Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeNotFound {
		t.Fatalf("cross-purpose outcome = %s, want not_found", outcome)
	}
}

func TestIssueAfterExpiryGeneratesFresh(t *testing.T) {
	engine, _, clk := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	if _, err := engine.Issue(context.Background(), h, entity.PurposeEmail, testOpts); err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	clk.now = clk.now.Add(testOpts.TTL + time.Minute)
	code, err := engine.Issue(context.Background(), h, entity.PurposeEmail, testOpts)
	if err != nil {
		t.Fatalf("re-Issue unexpected error: %v", err)
	}

	outcome, err := engine.Verify(context.Background(), h, entity.PurposeEmail, code, testOpts.TTL)
	if err != nil {
		t.Fatalf("Verify unexpected error: %v", err)
	}
	if outcome != entity.OutcomeValid {
		t.Fatalf("fresh code outcome = %s, want valid", outcome)
	}
}

func TestActivePurpose(t *testing.T) {
	engine, _, _ := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	if _, err := engine.ActivePurpose(context.Background(), h); err == nil {
		t.Fatal("expected error before any issue")
	}

	if _, err := engine.Issue(context.Background(), h, entity.PurposeSMS, testOpts); err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	p, err := engine.ActivePurpose(context.Background(), h)
	if err != nil {
		t.Fatalf("ActivePurpose unexpected error: %v", err)
	}
	if p != entity.PurposeSMS {
		t.Fatalf("active purpose = %s, want sms", p)
	}
}

func TestIsExpired(t *testing.T) {
	engine, _, clk := newTestEngine()
	h := entity.SessionHandle{Realm: "acme", ID: "s1"}

	expired, err := engine.IsExpired(context.Background(), h, entity.PurposeLogin, testOpts.TTL)
	if err != nil {
		t.Fatalf("IsExpired unexpected error: %v", err)
	}
	if !expired {
		t.Fatal("missing record must report expired")
	}

	if _, err := engine.Issue(context.Background(), h, entity.PurposeLogin, testOpts); err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	expired, err = engine.IsExpired(context.Background(), h, entity.PurposeLogin, testOpts.TTL)
	if err != nil {
		t.Fatalf("IsExpired unexpected error: %v", err)
	}
	if expired {
		t.Fatal("fresh record must not report expired")
	}

	clk.now = clk.now.Add(testOpts.TTL + time.Second)
	expired, err = engine.IsExpired(context.Background(), h, entity.PurposeLogin, testOpts.TTL)
	if err != nil {
		t.Fatalf("IsExpired unexpected error: %v", err)
	}
	if !expired {
		t.Fatal("stale record must report expired")
	}
}
