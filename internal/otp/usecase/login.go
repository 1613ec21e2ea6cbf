package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/otp/flow"
	"github.com/jacem/otpgate/internal/otp/lifecycle"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/shared/event"
)

type LoginInput struct {
	Realm   string
	Email   string
	OTPCode string
}

type LoginOutput struct {
	// OTPRequired signals the first phase: the code was sent and the caller
	// must repeat the request with it.
	OTPRequired bool
	SessionID   string

	UserID         int64
	Email          string
	EmailVerified  bool
	LoginTimestamp time.Time
}

// Login drives the two-phase login exchange. Without a code it resolves the
// user, consults the conditional gate, and when OTP is demanded issues and
// mails a login code. With a code it verifies against the pending attempt
// and completes the login.
func (s *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" {
		return nil, goerror.NewBusiness("Email is required", goerror.CodeInvalidInput)
	}

	user, err := s.repoDB.GetUserByEmail(ctx, in.Realm, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "login for unknown user", "realm", in.Realm, "email", in.Email)
		return nil, goerror.NewBusiness("User not found", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by email", "email", in.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !user.Enabled {
		slog.WarnContext(ctx, "login for disabled user", "user_id", user.ID)
		return nil, goerror.NewBusiness("User not found", goerror.CodeNotFound)
	}

	if in.OTPCode == "" {
		return s.loginStart(ctx, in.Realm, user)
	}
	return s.loginComplete(ctx, in.Realm, user, in.OTPCode)
}

func (s *Usecase) loginStart(ctx context.Context, realm string, user *entity.User) (*LoginOutput, error) {
	execs, err := s.repoDB.GetFlowExecutions(ctx, realm, s.opts.FlowAlias)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get flow executions", "realm", realm, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !flow.Evaluate(execs, user) {
		// The gate waived the OTP step; the login completes in one phase.
		return s.finishLogin(ctx, realm, user, entity.SessionHandle{})
	}

	h, err := s.resolvePendingSession(ctx, realm, user.Email)
	if err != nil {
		return nil, goerror.NewServer(err)
	}

	if err := s.sessions.BindUser(ctx, h, user.ID); err != nil {
		slog.ErrorContext(ctx, "failed to bind user to session", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if err := s.sessions.SetNote(ctx, h, noteLoginUser, strconv.FormatInt(user.ID, 10)); err != nil {
		slog.ErrorContext(ctx, "failed to mark login attempt", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if err := s.sessions.SetPendingLogin(ctx, realm, user.Email, h.ID); err != nil {
		slog.ErrorContext(ctx, "failed to index pending login", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	code, err := s.engine.Issue(ctx, h, entity.PurposeLogin, lifecycle.IssueOptions{
		Alphabet: s.opts.RESTAlphabet,
		Length:   s.opts.CodeLength,
		TTL:      s.opts.CodeTTL,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue login otp", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.notifier.SendCode(ctx, user.Email, code, s.opts.CodeTTL); err != nil {
		slog.ErrorContext(ctx, "failed to send login otp email", "session_id", h.ID, "error", err)
		return nil, goerror.NewBusiness("Failed to send OTP", goerror.CodeInternal)
	}

	return &LoginOutput{OTPRequired: true, SessionID: h.ID}, nil
}

// resolvePendingSession reuses an in-flight login session for the email when
// one still exists, so repeating phase 1 does not leak abandoned sessions.
func (s *Usecase) resolvePendingSession(ctx context.Context, realm, email string) (entity.SessionHandle, error) {
	id, err := s.sessions.PendingLogin(ctx, realm, email)
	if err == nil {
		h, err := s.sessions.Get(ctx, realm, id)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, goerror.ErrNotFound) {
			return entity.SessionHandle{}, err
		}
	} else if !errors.Is(err, goerror.ErrNotFound) {
		return entity.SessionHandle{}, err
	}

	return s.sessions.Create(ctx, realm, s.opts.ClientID)
}

func (s *Usecase) loginComplete(ctx context.Context, realm string, user *entity.User, code string) (*LoginOutput, error) {
	id, err := s.sessions.PendingLogin(ctx, realm, user.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Login not initiated for this session", goerror.CodeInvalidInput)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve pending login", "email", user.Email, "error", err)
		return nil, goerror.NewServer(err)
	}

	h, err := s.sessions.Get(ctx, realm, id)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Login not initiated for this session", goerror.CodeInvalidInput)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to get session", "session_id", id, "error", err)
		return nil, goerror.NewServer(err)
	}

	if _, err := s.sessions.GetNote(ctx, h, noteLoginUser); errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusiness("Login not initiated for this session", goerror.CodeInvalidInput)
	} else if err != nil {
		slog.ErrorContext(ctx, "failed to read login marker", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	outcome, err := s.engine.Verify(ctx, h, entity.PurposeLogin, code, s.opts.CodeTTL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to verify login otp", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if outcome != entity.OutcomeValid {
		if outcome == entity.OutcomeInvalid {
			s.recordAudit(ctx, realm, h, user.ID, entity.PurposeLogin, event.OTPAuditEventVerifyFailed)
		}
		return nil, goerror.NewBusiness("Invalid or expired OTP code", goerror.CodeInvalidInput)
	}

	if err := s.sessions.RemoveNote(ctx, h, noteLoginUser); err != nil {
		slog.ErrorContext(ctx, "failed to clear login marker", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if err := s.sessions.ClearPendingLogin(ctx, realm, user.Email); err != nil {
		slog.ErrorContext(ctx, "failed to clear pending login", "session_id", h.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return s.finishLogin(ctx, realm, user, h)
}

func (s *Usecase) finishLogin(ctx context.Context, realm string, user *entity.User, h entity.SessionHandle) (*LoginOutput, error) {
	now := s.clock.Now()
	if err := s.repoDB.StampLastLogin(ctx, user.ID, now); err != nil {
		slog.ErrorContext(ctx, "failed to stamp last login", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &LoginOutput{
		UserID:         user.ID,
		Email:          user.Email,
		EmailVerified:  user.EmailVerified,
		LoginTimestamp: now,
	}, nil
}
