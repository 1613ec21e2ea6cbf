package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/otp/lifecycle"
	"github.com/jacem/otpgate/internal/pkg/goerror"
)

type SendEmailOTPInput struct {
	Realm string
	Email string `validate:"required,email"`
}

type SendEmailOTPOutput struct {
	SessionID     string
	Type          entity.Purpose
	ExpirySeconds int64
}

// SendEmailOTP issues an email-purpose code for an existing user and mails it.
func (s *Usecase) SendEmailOTP(ctx context.Context, in SendEmailOTPInput) (*SendEmailOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "SendEmailOTP")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" {
		return nil, goerror.NewBusiness("Email is required", goerror.CodeInvalidInput)
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByEmail(ctx, in.Realm, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "email otp requested for unknown user", "realm", in.Realm, "email", in.Email)
		return nil, goerror.NewBusiness("User not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by email", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	h, err := s.sessions.Create(ctx, in.Realm, s.opts.ClientID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session", "realm", in.Realm, "error", err)
		return nil, goerror.NewServer(err)
	}
	if err := s.sessions.BindUser(ctx, h, user.ID); err != nil {
		slog.ErrorContext(ctx, "failed to bind user to session", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	code, err := s.engine.Issue(ctx, h, entity.PurposeEmail, lifecycle.IssueOptions{
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

	return &SendEmailOTPOutput{
		SessionID:     h.ID,
		Type:          entity.PurposeEmail,
		ExpirySeconds: int64(s.opts.CodeTTL.Seconds()),
	}, nil
}
