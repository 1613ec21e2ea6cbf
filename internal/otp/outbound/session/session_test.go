package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/uid"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, uid.NewUUID(), 30*time.Minute, instrument.NewNoop()), mr
}

func TestCreateAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	h, err := store.Create(ctx, "acme", "email-otp-api-client")
	if err != nil {
		t.Fatalf("Create unexpected error: %v", err)
	}
	if h.Realm != "acme" || h.ID == "" {
		t.Fatalf("unexpected handle: %+v", h)
	}

	got, err := store.Get(ctx, "acme", h.ID)
	if err != nil {
		t.Fatalf("Get unexpected error: %v", err)
	}
	if got != h {
		t.Fatalf("Get = %+v, want %+v", got, h)
	}

	if ttl := mr.TTL(keyPrefix + "acme:" + h.ID); ttl != 30*time.Minute {
		t.Fatalf("session ttl = %v, want 30m", ttl)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "acme", "nope")
	if !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("Get missing = %v, want not found", err)
	}
}

func TestGetWrongRealm(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	h, err := store.Create(ctx, "acme", "email-otp-api-client")
	if err != nil {
		t.Fatalf("Create unexpected error: %v", err)
	}

	_, err = store.Get(ctx, "other", h.ID)
	if !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("Get wrong realm = %v, want not found", err)
	}
}

func TestBindAndReadUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	h, err := store.Create(ctx, "acme", "email-otp-api-client")
	if err != nil {
		t.Fatalf("Create unexpected error: %v", err)
	}

	if _, err := store.User(ctx, h); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("User before bind = %v, want not found", err)
	}

	if err := store.BindUser(ctx, h, 42); err != nil {
		t.Fatalf("BindUser unexpected error: %v", err)
	}

	id, err := store.User(ctx, h)
	if err != nil {
		t.Fatalf("User unexpected error: %v", err)
	}
	if id != 42 {
		t.Fatalf("User = %d, want 42", id)
	}
}

func TestNotes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	h, err := store.Create(ctx, "acme", "email-otp-api-client")
	if err != nil {
		t.Fatalf("Create unexpected error: %v", err)
	}

	if _, err := store.GetNote(ctx, h, "otp/email/code"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("GetNote missing = %v, want not found", err)
	}

	if err := store.SetNote(ctx, h, "otp/email/code", "482913"); err != nil {
		t.Fatalf("SetNote unexpected error: %v", err)
	}

	v, err := store.GetNote(ctx, h, "otp/email/code")
	if err != nil {
		t.Fatalf("GetNote unexpected error: %v", err)
	}
	if v != "482913" {
		t.Fatalf("GetNote = %q, want 482913", v)
	}

	if err := store.RemoveNote(ctx, h, "otp/email/code"); err != nil {
		t.Fatalf("RemoveNote unexpected error: %v", err)
	}
	if _, err := store.GetNote(ctx, h, "otp/email/code"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("GetNote after remove = %v, want not found", err)
	}
}

func TestPendingLogin(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.PendingLogin(ctx, "acme", "a@b.com"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("PendingLogin missing = %v, want not found", err)
	}

	if err := store.SetPendingLogin(ctx, "acme", "a@b.com", "sess-1"); err != nil {
		t.Fatalf("SetPendingLogin unexpected error: %v", err)
	}

	id, err := store.PendingLogin(ctx, "acme", "a@b.com")
	if err != nil {
		t.Fatalf("PendingLogin unexpected error: %v", err)
	}
	if id != "sess-1" {
		t.Fatalf("PendingLogin = %q, want sess-1", id)
	}

	if err := store.ClearPendingLogin(ctx, "acme", "a@b.com"); err != nil {
		t.Fatalf("ClearPendingLogin unexpected error: %v", err)
	}
	if _, err := store.PendingLogin(ctx, "acme", "a@b.com"); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("PendingLogin after clear = %v, want not found", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	h, err := store.Create(ctx, "acme", "email-otp-api-client")
	if err != nil {
		t.Fatalf("Create unexpected error: %v", err)
	}

	mr.FastForward(31 * time.Minute)

	if _, err := store.Get(ctx, "acme", h.ID); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("Get after expiry = %v, want not found", err)
	}
}
