// Package lifecycle implements the passcode state machine: generate-or-reuse,
// validate, expire, consume, resend. All state lives in the session's note
// bag, never in the engine itself.
package lifecycle

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/pkg/clock"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/pkg/otpgen"
)

// NoteActiveType records which purpose last issued a code in the session,
// so verify surfaces that take no explicit purpose can resolve it.
const NoteActiveType = "otp/active-type"

// NoteStore is the slice of the session store the engine needs: flat keyed
// values scoped to one session handle.
type NoteStore interface {
	GetNote(ctx context.Context, h entity.SessionHandle, key string) (string, error)
	SetNote(ctx context.Context, h entity.SessionHandle, key, value string) error
	RemoveNote(ctx context.Context, h entity.SessionHandle, key string) error
}

// IssueOptions parameterizes code issuance.
type IssueOptions struct {
	// Alphabet is the character set the code is drawn from.
	Alphabet string
	// Length is the code length.
	Length int
	// TTL bounds how long the code stays valid.
	TTL time.Duration
	// Force always generates a fresh code, replacing any live one.
	Force bool
}

// Engine drives the OTP lifecycle for one session and purpose at a time.
type Engine struct {
	notes NoteStore
	gen   otpgen.Generator
	clock clock.Clocker
}

// NewEngine constructs an Engine.
func NewEngine(notes NoteStore, gen otpgen.Generator, clk clock.Clocker) *Engine {
	return &Engine{notes: notes, gen: gen, clock: clk}
}

func codeKey(p entity.Purpose) string {
	return "otp/" + p.String() + "/code"
}

func createdAtKey(p entity.Purpose) string {
	return "otp/" + p.String() + "/created-at"
}

// Issue returns the active code for the purpose, generating a new one when
// none exists, the current one expired, or opts.Force is set. Re-issuing
// without Force is idempotent so re-rendering a form never rotates the code
// under the user.
func (e *Engine) Issue(ctx context.Context, h entity.SessionHandle, purpose entity.Purpose, opts IssueOptions) (string, error) {
	if !opts.Force {
		code, createdAt, err := e.record(ctx, h, purpose)
		if err != nil && !errors.Is(err, goerror.ErrNotFound) {
			return "", err
		}
		if err == nil && !e.expired(createdAt, opts.TTL) {
			return code, nil
		}
	}

	code, err := e.gen.Generate(opts.Alphabet, opts.Length)
	if err != nil {
		return "", err
	}

	if err := e.notes.SetNote(ctx, h, codeKey(purpose), code); err != nil {
		return "", err
	}
	createdAt := strconv.FormatInt(e.clock.Now().Unix(), 10)
	if err := e.notes.SetNote(ctx, h, createdAtKey(purpose), createdAt); err != nil {
		return "", err
	}
	if err := e.notes.SetNote(ctx, h, NoteActiveType, purpose.String()); err != nil {
		return "", err
	}

	return code, nil
}

// IsExpired reports whether no live record exists for the purpose or its TTL
// has elapsed.
func (e *Engine) IsExpired(ctx context.Context, h entity.SessionHandle, purpose entity.Purpose, ttl time.Duration) (bool, error) {
	_, createdAt, err := e.record(ctx, h, purpose)
	if errors.Is(err, goerror.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return e.expired(createdAt, ttl), nil
}

// Verify checks a submitted code against the live record for the purpose.
// The record is consumed on OutcomeValid and deleted on OutcomeExpired;
// a mismatch keeps it so the user can correct a typo within the TTL window.
func (e *Engine) Verify(ctx context.Context, h entity.SessionHandle, purpose entity.Purpose, submitted string, ttl time.Duration) (entity.Outcome, error) {
	code, createdAt, err := e.record(ctx, h, purpose)
	if errors.Is(err, goerror.ErrNotFound) {
		return entity.OutcomeNotFound, nil
	}
	if err != nil {
		return entity.OutcomeNotFound, err
	}

	if e.expired(createdAt, ttl) {
		if err := e.Discard(ctx, h, purpose); err != nil {
			return entity.OutcomeExpired, err
		}
		return entity.OutcomeExpired, nil
	}

	if len(submitted) != len(code) || subtle.ConstantTimeCompare([]byte(submitted), []byte(code)) != 1 {
		return entity.OutcomeInvalid, nil
	}

	if err := e.Discard(ctx, h, purpose); err != nil {
		return entity.OutcomeValid, err
	}
	return entity.OutcomeValid, nil
}

// ActivePurpose resolves the purpose that last issued a code in the session.
func (e *Engine) ActivePurpose(ctx context.Context, h entity.SessionHandle) (entity.Purpose, error) {
	raw, err := e.notes.GetNote(ctx, h, NoteActiveType)
	if err != nil {
		return "", err
	}

	p := entity.PurposeFromString(raw)
	if p == "" {
		return "", goerror.ErrNotFound
	}
	return p, nil
}

// Discard removes the live record for the purpose.
func (e *Engine) Discard(ctx context.Context, h entity.SessionHandle, purpose entity.Purpose) error {
	if err := e.notes.RemoveNote(ctx, h, codeKey(purpose)); err != nil {
		return err
	}
	return e.notes.RemoveNote(ctx, h, createdAtKey(purpose))
}

func (e *Engine) record(ctx context.Context, h entity.SessionHandle, purpose entity.Purpose) (code string, createdAt time.Time, err error) {
	code, err = e.notes.GetNote(ctx, h, codeKey(purpose))
	if err != nil {
		return "", time.Time{}, err
	}

	raw, err := e.notes.GetNote(ctx, h, createdAtKey(purpose))
	if err != nil {
		return "", time.Time{}, err
	}

	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// A corrupt timestamp makes the record unusable; treat it as absent.
		return "", time.Time{}, goerror.ErrNotFound
	}

	return code, time.Unix(sec, 0), nil
}

// The boundary is inclusive: a code submitted exactly at createdAt+ttl is
// still valid.
func (e *Engine) expired(createdAt time.Time, ttl time.Duration) bool {
	return e.clock.Now().Sub(createdAt) > ttl
}
