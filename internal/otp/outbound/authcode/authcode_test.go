package authcode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/pkg/clock"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/pkg/hash"
	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/uid"
)

func newTestIssuer(t *testing.T) (*Issuer, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	oid, err := uid.NewObjectIDGenerator()
	if err != nil {
		t.Fatalf("object id generator: %v", err)
	}

	return NewIssuer(client, hash.NewHMACSHA256("test-secret"), oid, clock.New(), instrument.NewNoop()), mr
}

func TestIssueAndRedeem(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	code, err := issuer.Issue(ctx, entity.AuthorizationCode{
		Realm:     "acme",
		SessionID: "sess-1",
		UserID:    42,
		OTPType:   entity.PurposeLogin,
	}, 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}
	if code == "" {
		t.Fatal("Issue returned empty code")
	}

	payload, err := issuer.Redeem(ctx, "acme", code)
	if err != nil {
		t.Fatalf("Redeem unexpected error: %v", err)
	}
	if payload.SessionID != "sess-1" || payload.UserID != 42 || payload.OTPType != entity.PurposeLogin {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.IssuedAt.IsZero() {
		t.Fatal("IssuedAt not stamped")
	}
}

func TestRedeemIsSingleUse(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	code, err := issuer.Issue(ctx, entity.AuthorizationCode{Realm: "acme", SessionID: "sess-1", UserID: 1}, 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	if _, err := issuer.Redeem(ctx, "acme", code); err != nil {
		t.Fatalf("first Redeem unexpected error: %v", err)
	}
	if _, err := issuer.Redeem(ctx, "acme", code); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("second Redeem = %v, want not found", err)
	}
}

func TestRedeemWrongRealm(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	code, err := issuer.Issue(ctx, entity.AuthorizationCode{Realm: "acme", SessionID: "sess-1", UserID: 1}, 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	if _, err := issuer.Redeem(ctx, "other", code); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("Redeem wrong realm = %v, want not found", err)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	if _, err := issuer.Redeem(context.Background(), "acme", "no-such-code"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("Redeem unknown = %v, want not found", err)
	}
}

func TestRedeemExpired(t *testing.T) {
	issuer, mr := newTestIssuer(t)
	ctx := context.Background()

	code, err := issuer.Issue(ctx, entity.AuthorizationCode{Realm: "acme", SessionID: "sess-1", UserID: 1}, time.Minute)
	if err != nil {
		t.Fatalf("Issue unexpected error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := issuer.Redeem(ctx, "acme", code); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("Redeem expired = %v, want not found", err)
	}
}
