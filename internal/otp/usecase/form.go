package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/otp/flow"
	"github.com/jacem/otpgate/internal/otp/lifecycle"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/shared/event"
)

type FormChallengeInput struct {
	Realm string
	Email string
}

type FormState struct {
	SessionID string
	Email     string

	// Required is false when the conditional gate waived the OTP step.
	Required bool
	// Done is true once the code was verified.
	Done bool
	// ErrorMessage renders as a form error, NoticeMessage as an info banner.
	ErrorMessage  string
	NoticeMessage string
}

type FormSubmitInput struct {
	Realm     string
	SessionID string
	Code      string
}

type FormResendInput struct {
	Realm     string
	SessionID string
}

// FormChallenge enters the interactive flow: it resolves the user, consults
// the gate, creates a session, issues a form-alphabet code without rotating
// any live one, and mails it.
func (s *Usecase) FormChallenge(ctx context.Context, in FormChallengeInput) (*FormState, error) {
	ctx, span := s.startSpan(ctx, "FormChallenge")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" {
		return nil, goerror.NewBusiness("Email is required", goerror.CodeInvalidInput)
	}

	user, err := s.repoDB.GetUserByEmail(ctx, in.Realm, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "form challenge for unknown user", "realm", in.Realm, "email", in.Email)
		return nil, goerror.NewBusiness("User not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by email", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	execs, err := s.repoDB.GetFlowExecutions(ctx, in.Realm, s.opts.FlowAlias)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get flow executions", "realm", in.Realm, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !flow.Evaluate(execs, user) {
		return &FormState{Email: in.Email, Required: false, Done: true}, nil
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
	if err := s.sessions.SetNote(ctx, h, noteFormEmail, in.Email); err != nil {
		slog.ErrorContext(ctx, "failed to note form email", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.issueAndNotify(ctx, h, in.Email, false); err != nil {
		return nil, err
	}

	return &FormState{SessionID: h.ID, Email: in.Email, Required: true}, nil
}

// FormResend regenerates the code and re-notifies, invalidating the prior one.
func (s *Usecase) FormResend(ctx context.Context, in FormResendInput) (*FormState, error) {
	ctx, span := s.startSpan(ctx, "FormResend")
	defer span.End()

	h, email, err := s.formSession(ctx, in.Realm, in.SessionID)
	if err != nil {
		return nil, err
	}

	if err := s.issueAndNotify(ctx, h, email, true); err != nil {
		return nil, err
	}

	return &FormState{
		SessionID:     h.ID,
		Email:         email,
		Required:      true,
		NoticeMessage: "A new code has been sent to your email",
	}, nil
}

// FormSubmit verifies a submitted code. An empty submission re-renders with
// no state change. Expired or missing codes regenerate transparently.
func (s *Usecase) FormSubmit(ctx context.Context, in FormSubmitInput) (*FormState, error) {
	ctx, span := s.startSpan(ctx, "FormSubmit")
	defer span.End()

	h, email, err := s.formSession(ctx, in.Realm, in.SessionID)
	if err != nil {
		return nil, err
	}

	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		return &FormState{SessionID: h.ID, Email: email, Required: true}, nil
	}

	outcome, err := s.engine.Verify(ctx, h, entity.PurposeEmail, in.Code, s.opts.CodeTTL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to verify otp", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	switch outcome {
	case entity.OutcomeInvalid:
		userID, _ := s.sessions.User(ctx, h)
		s.recordAudit(ctx, in.Realm, h, userID, entity.PurposeEmail, event.OTPAuditEventVerifyFailed)
		return &FormState{
			SessionID:    h.ID,
			Email:        email,
			Required:     true,
			ErrorMessage: "Invalid OTP code",
		}, nil

	case entity.OutcomeExpired, entity.OutcomeNotFound:
		if err := s.issueAndNotify(ctx, h, email, true); err != nil {
			return nil, err
		}
		return &FormState{
			SessionID:     h.ID,
			Email:         email,
			Required:      true,
			NoticeMessage: "Your code expired, a new one has been sent",
		}, nil
	}

	userID, err := s.sessions.User(ctx, h)
	if err == nil {
		if err := s.repoDB.SetEmailVerified(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "failed to mark email verified", "user_id", userID, "error", err)
			return nil, goerror.NewServer(err)
		}
	}

	return &FormState{SessionID: h.ID, Email: email, Required: true, Done: true}, nil
}

func (s *Usecase) formSession(ctx context.Context, realm, sessionID string) (entity.SessionHandle, string, error) {
	if sessionID == "" {
		return entity.SessionHandle{}, "", goerror.NewBusiness("Invalid session ID", goerror.CodeInvalidInput)
	}

	h, err := s.sessions.Get(ctx, realm, sessionID)
	if errors.Is(err, goerror.ErrNotFound) {
		return entity.SessionHandle{}, "", goerror.NewBusiness("No authentication session found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get session", "session_id", sessionID, "error", err)
		return entity.SessionHandle{}, "", goerror.NewServer(err)
	}

	email, err := s.sessions.GetNote(ctx, h, noteFormEmail)
	if errors.Is(err, goerror.ErrNotFound) {
		return entity.SessionHandle{}, "", goerror.NewBusiness("No authentication session found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to read form email note", "session_id", h.ID, "error", err)
		return entity.SessionHandle{}, "", goerror.NewServer(err)
	}

	return h, email, nil
}

func (s *Usecase) issueAndNotify(ctx context.Context, h entity.SessionHandle, email string, force bool) error {
	code, err := s.engine.Issue(ctx, h, entity.PurposeEmail, lifecycle.IssueOptions{
		Alphabet: s.opts.FormAlphabet,
		Length:   s.opts.CodeLength,
		TTL:      s.opts.CodeTTL,
		Force:    force,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue otp", "session_id", h.ID, "error", err)
		return goerror.NewServer(err)
	}

	if err := s.notifier.SendCode(ctx, email, code, s.opts.CodeTTL); err != nil {
		slog.ErrorContext(ctx, "failed to send otp email", "session_id", h.ID, "error", err)
		return goerror.NewBusiness("Failed to send OTP", goerror.CodeInternal)
	}
	return nil
}
