package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/shared/event"
)

type VerifyLoginCodeInput struct {
	Realm     string
	SessionID string
	OTPCode   string
}

type VerifyLoginCodeOutput struct {
	AuthorizationCode string
	UserID            int64
	Email             string
	OTPType           entity.Purpose
	ExpiresIn         int64
}

// VerifyLoginCode checks a code against the session's active purpose and, on
// success, mints a single-use authorization code for the token exchange.
func (s *Usecase) VerifyLoginCode(ctx context.Context, in VerifyLoginCodeInput) (*VerifyLoginCodeOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyLoginCode")
	defer span.End()

	if in.SessionID == "" {
		return nil, goerror.NewBusiness("Invalid session ID", goerror.CodeInvalidInput)
	}
	if in.OTPCode == "" {
		return nil, goerror.NewBusiness("Invalid or expired OTP code", goerror.CodeInvalidInput)
	}

	h, err := s.sessions.Get(ctx, in.Realm, in.SessionID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "verify-code against unknown session", "realm", in.Realm, "session_id", in.SessionID)
		return nil, goerror.NewBusiness("Invalid session ID", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get session", "session_id", in.SessionID, "error", err)
		return nil, goerror.NewServer(err)
	}

	purpose, err := s.engine.ActivePurpose(ctx, h)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("No OTP found for this session", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve active otp purpose", "session_id", in.SessionID, "error", err)
		return nil, goerror.NewServer(err)
	}

	userID, err := s.sessions.User(ctx, h)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("No authentication session found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve session user", "session_id", in.SessionID, "error", err)
		return nil, goerror.NewServer(err)
	}

	outcome, err := s.engine.Verify(ctx, h, purpose, in.OTPCode, s.opts.CodeTTL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to verify otp", "session_id", in.SessionID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if outcome != entity.OutcomeValid {
		if outcome == entity.OutcomeInvalid {
			s.recordAudit(ctx, in.Realm, h, userID, purpose, event.OTPAuditEventVerifyFailed)
		}
		return nil, goerror.NewBusiness("Invalid or expired OTP code", goerror.CodeInvalidInput)
	}

	code, err := s.authCodes.Issue(ctx, entity.AuthorizationCode{
		Realm:     in.Realm,
		SessionID: h.ID,
		UserID:    userID,
		OTPType:   purpose,
	}, s.opts.AuthCodeTTL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue authorization code", "session_id", in.SessionID, "error", err)
		return nil, goerror.NewServer(err)
	}

	email := ""
	if user, err := s.repoDB.GetUserByID(ctx, in.Realm, userID); err == nil {
		email = user.Email
	} else {
		slog.WarnContext(ctx, "failed to resolve user email for verify-code response", "user_id", userID, "error", err)
	}

	return &VerifyLoginCodeOutput{
		AuthorizationCode: code,
		UserID:            userID,
		Email:             email,
		OTPType:           purpose,
		ExpiresIn:         int64(s.opts.AuthCodeTTL.Seconds()),
	}, nil
}
