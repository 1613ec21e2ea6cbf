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

type SendSMSOTPInput struct {
	Realm       string
	PhoneNumber string `validate:"required,phone"`
}

type SendSMSOTPOutput struct {
	SessionID     string
	Type          entity.Purpose
	ExpirySeconds int64
	MaskedPhone   string
}

// SendSMSOTP issues an sms-purpose code for an existing user and hands it to
// the delivery bridge. The carrier integration consumes the published event.
func (s *Usecase) SendSMSOTP(ctx context.Context, in SendSMSOTPInput) (*SendSMSOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "SendSMSOTP")
	defer span.End()

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if in.PhoneNumber == "" {
		return nil, goerror.NewBusiness("Phone number is required", goerror.CodeInvalidInput)
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByPhone(ctx, in.Realm, in.PhoneNumber)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "sms otp requested for unknown user", "realm", in.Realm)
		return nil, goerror.NewBusiness("User not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by phone", "error", err)
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

	code, err := s.engine.Issue(ctx, h, entity.PurposeSMS, lifecycle.IssueOptions{
		Alphabet: s.opts.RESTAlphabet,
		Length:   s.opts.CodeLength,
		TTL:      s.opts.CodeTTL,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue otp", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoMessaging.PublishSMSDelivery(ctx, SMSDeliveryEvent{
		Realm:         in.Realm,
		SessionID:     h.ID,
		PhoneNumber:   in.PhoneNumber,
		Code:          code,
		ExpirySeconds: int64(s.opts.CodeTTL.Seconds()),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish sms delivery", "session_id", h.ID, "error", err)
		return nil, goerror.NewBusiness("Failed to send OTP", goerror.CodeInternal)
	}

	return &SendSMSOTPOutput{
		SessionID:     h.ID,
		Type:          entity.PurposeSMS,
		ExpirySeconds: int64(s.opts.CodeTTL.Seconds()),
		MaskedPhone:   maskPhone(in.PhoneNumber),
	}, nil
}
