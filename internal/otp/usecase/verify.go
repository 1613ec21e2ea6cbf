package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/shared/event"
)

type VerifyInput struct {
	Realm     string
	Email     string
	Code      string
	SessionID string
}

// Verify checks a submitted code against the session's live record. On a
// match for a signup or email purpose the user's email is marked verified.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) error {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" {
		return goerror.NewBusiness("Email is required", goerror.CodeInvalidInput)
	}
	if in.SessionID == "" {
		return goerror.NewBusiness("Invalid session ID", goerror.CodeInvalidInput)
	}
	if in.Code == "" {
		return goerror.NewBusiness("OTP code is required", goerror.CodeInvalidInput)
	}

	h, err := s.sessions.Get(ctx, in.Realm, in.SessionID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "otp verify against unknown session", "realm", in.Realm, "session_id", in.SessionID)
		return goerror.NewBusiness("Invalid session ID", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get session", "session_id", in.SessionID, "error", err)
		return goerror.NewServer(err)
	}

	purpose, err := s.engine.ActivePurpose(ctx, h)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusiness("No OTP found for this session", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve active otp purpose", "session_id", in.SessionID, "error", err)
		return goerror.NewServer(err)
	}

	outcome, err := s.engine.Verify(ctx, h, purpose, in.Code, s.opts.CodeTTL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to verify otp", "session_id", in.SessionID, "error", err)
		return goerror.NewServer(err)
	}

	switch outcome {
	case entity.OutcomeNotFound:
		return goerror.NewBusiness("No OTP found for this session", goerror.CodeNotFound)

	case entity.OutcomeExpired:
		s.recordAudit(ctx, in.Realm, h, 0, purpose, event.OTPAuditEventVerifyExpired)
		return goerror.NewBusiness("OTP has expired", goerror.CodeInvalidInput)

	case entity.OutcomeInvalid:
		s.recordAudit(ctx, in.Realm, h, 0, purpose, event.OTPAuditEventVerifyFailed)
		return goerror.NewBusiness("Invalid OTP code", goerror.CodeInvalidInput)
	}

	if purpose == entity.PurposeSignup || purpose == entity.PurposeEmail {
		// The verified flag goes to the session's bound user; the submitted
		// email must match it and never selects the account on its own.
		userID, err := s.sessions.User(ctx, h)
		if errors.Is(err, goerror.ErrNotFound) {
			return goerror.NewBusiness("No authentication session found", goerror.CodeNotFound)
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to resolve session user", "session_id", in.SessionID, "error", err)
			return goerror.NewServer(err)
		}

		user, err := s.repoDB.GetUserByID(ctx, in.Realm, userID)
		if errors.Is(err, goerror.ErrNotFound) {
			return goerror.NewBusiness("User not found", goerror.CodeNotFound)
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", userID, "error", err)
			return goerror.NewServer(err)
		}

		if user.Email != in.Email {
			slog.WarnContext(ctx, "otp verify email does not match session user", "session_id", in.SessionID, "user_id", userID)
			return goerror.NewBusiness("User not found", goerror.CodeNotFound)
		}

		if err := s.repoDB.SetEmailVerified(ctx, user.ID); err != nil {
			slog.ErrorContext(ctx, "failed to mark email verified", "user_id", user.ID, "error", err)
			return goerror.NewServer(err)
		}
	}

	return nil
}
