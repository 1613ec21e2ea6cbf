package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/otp/lifecycle"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/pkg/idempotency"
)

type SendInput struct {
	Realm  string
	Email  string
	Method string
}

type SendOutput struct {
	SessionID string
}

// Send starts an OTP exchange for the email in one of two modes: "login"
// requires the user to exist, "signup" requires the opposite and registers
// the user first.
func (s *Usecase) Send(ctx context.Context, in SendInput) (*SendOutput, error) {
	ctx, span := s.startSpan(ctx, "Send")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" {
		return nil, goerror.NewBusiness("Email is required", goerror.CodeInvalidInput)
	}
	if in.Method != "login" && in.Method != "signup" {
		return nil, goerror.NewBusiness("Method must be 'login' or 'signup'", goerror.CodeInvalidInput)
	}

	purpose := entity.PurposeLogin
	if in.Method == "signup" {
		purpose = entity.PurposeSignup
	}

	user, err := s.repoDB.GetUserByEmail(ctx, in.Realm, in.Email)
	switch {
	case err == nil && purpose == entity.PurposeSignup:
		return nil, goerror.NewBusiness("User already exists", goerror.CodeConflict)

	case errors.Is(err, goerror.ErrNotFound) && purpose == entity.PurposeLogin:
		slog.WarnContext(ctx, "login otp requested for unknown user", "realm", in.Realm, "email", in.Email)
		return nil, goerror.NewBusiness("User not found", goerror.CodeNotFound)

	case err != nil && !errors.Is(err, goerror.ErrNotFound):
		slog.ErrorContext(ctx, "failed to repo get user by email", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	if purpose == entity.PurposeSignup {
		user, err = s.registerUser(ctx, in.Realm, in.Email)
		if err != nil {
			return nil, err
		}
	}

	h, err := s.sessions.Create(ctx, in.Realm, s.opts.ClientID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session", "realm", in.Realm, "error", err)
		return nil, goerror.NewServer(err)
	}

	// Both modes bind the session to its user so verification can resolve the
	// account from the session instead of trusting the request body.
	if err := s.sessions.BindUser(ctx, h, user.ID); err != nil {
		slog.ErrorContext(ctx, "failed to bind user to session", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	code, err := s.engine.Issue(ctx, h, purpose, lifecycle.IssueOptions{
		Alphabet: s.opts.RESTAlphabet,
		Length:   s.opts.CodeLength,
		TTL:      s.opts.CodeTTL,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue otp", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.notifier.SendCode(ctx, in.Email, code, s.opts.CodeTTL); err != nil {
		slog.ErrorContext(ctx, "failed to send otp email", "session_id", h.ID, "error", err)
		return nil, goerror.NewBusiness("Failed to send OTP", goerror.CodeInternal)
	}

	return &SendOutput{SessionID: h.ID}, nil
}

// registerUser creates the signup user under an idempotency guard so two
// concurrent signups for the same email cannot double-create the record.
func (s *Usecase) registerUser(ctx context.Context, realm, email string) (*entity.User, error) {
	id := s.uid.Generate()
	key := "signup:" + realm + ":" + email
	err := s.idemp.Exec(ctx, key, func(ctx context.Context) error {
		return s.repoDB.CreateUser(ctx, entity.NewUser{
			ID:      id,
			Realm:   realm,
			Email:   email,
			Enabled: true,
		})
	})

	// A concurrent signup holding or having finished the guard means the user
	// record exists or is about to.
	if errors.Is(err, goerror.ErrConflict) ||
		errors.Is(err, idempotency.ErrAlreadyInProgress) ||
		errors.Is(err, idempotency.ErrAlreadyCompleted) {
		return nil, goerror.NewBusiness("User already exists", goerror.CodeConflict)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create signup user", "realm", realm, "email", email, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &entity.User{ID: id, Realm: realm, Email: email, Enabled: true}, nil
}
