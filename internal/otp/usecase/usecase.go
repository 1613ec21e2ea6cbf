package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/otp/lifecycle"
	"github.com/jacem/otpgate/internal/pkg/clock"
	"github.com/jacem/otpgate/internal/pkg/goroutine"
	"github.com/jacem/otpgate/internal/pkg/idempotency"
	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/otpgen"
	"github.com/jacem/otpgate/internal/pkg/uid"
	"github.com/jacem/otpgate/internal/pkg/validator"
)

// noteLoginUser marks a session as having passed the first login phase; its
// value is the resolved user id. noteFormEmail binds a form-flow session to
// the address being verified.
const (
	noteLoginUser = "otp/login/user"
	noteFormEmail = "otp/form/email"
)

type SMSDeliveryEvent struct {
	Realm         string
	SessionID     string
	PhoneNumber   string
	Code          string
	ExpirySeconds int64
}

type AuditEvent struct {
	Realm      string
	SessionID  string
	UserID     int64
	Purpose    string
	Event      string
	OccurredAt int64
}

type repoMessaging interface {
	PublishSMSDelivery(ctx context.Context, msg SMSDeliveryEvent) error
	PublishAudit(ctx context.Context, msg AuditEvent) error
}

type repoDB interface {
	GetUserByEmail(ctx context.Context, realm, email string) (*entity.User, error)
	GetUserByPhone(ctx context.Context, realm, phone string) (*entity.User, error)
	GetUserByID(ctx context.Context, realm string, id int64) (*entity.User, error)
	CreateUser(ctx context.Context, in entity.NewUser) error
	SetEmailVerified(ctx context.Context, id int64) error
	StampLastLogin(ctx context.Context, id int64, at time.Time) error
	GetFlowExecutions(ctx context.Context, realm, flowAlias string) ([]entity.FlowExecution, error)
}

type sessionStore interface {
	lifecycle.NoteStore

	Create(ctx context.Context, realm, clientID string) (entity.SessionHandle, error)
	Get(ctx context.Context, realm, id string) (entity.SessionHandle, error)
	BindUser(ctx context.Context, h entity.SessionHandle, userID int64) error
	User(ctx context.Context, h entity.SessionHandle) (int64, error)
	SetPendingLogin(ctx context.Context, realm, email, sessionID string) error
	PendingLogin(ctx context.Context, realm, email string) (string, error)
	ClearPendingLogin(ctx context.Context, realm, email string) error
}

type otpEngine interface {
	Issue(ctx context.Context, h entity.SessionHandle, purpose entity.Purpose, opts lifecycle.IssueOptions) (string, error)
	IsExpired(ctx context.Context, h entity.SessionHandle, purpose entity.Purpose, ttl time.Duration) (bool, error)
	Verify(ctx context.Context, h entity.SessionHandle, purpose entity.Purpose, submitted string, ttl time.Duration) (entity.Outcome, error)
	ActivePurpose(ctx context.Context, h entity.SessionHandle) (entity.Purpose, error)
}

type authCodeIssuer interface {
	Issue(ctx context.Context, payload entity.AuthorizationCode, ttl time.Duration) (string, error)
}

type notifier interface {
	SendCode(ctx context.Context, to, code string, ttl time.Duration) error
}

// Options is the typed configuration of the OTP module, resolved once at
// startup.
type Options struct {
	// ClientID is the client context new sessions are bound to.
	ClientID string
	// CodeLength is clamped to [4, 10].
	CodeLength int
	// CodeTTL bounds passcode validity.
	CodeTTL time.Duration
	// AuthCodeTTL bounds authorization-code validity.
	AuthCodeTTL time.Duration
	// RESTAlphabet is the alphabet used by the JSON endpoints.
	RESTAlphabet string
	// FormAlphabet is the alphabet used by the interactive form.
	FormAlphabet string
	// FlowAlias names the authentication flow whose execution steps gate login.
	FlowAlias string
}

const (
	defaultClientID    = "email-otp-api-client"
	defaultCodeLength  = 6
	defaultCodeTTL     = 10 * time.Minute
	defaultAuthCodeTTL = 5 * time.Minute
	defaultFlowAlias   = "browser-otp"

	minCodeLength = 4
	maxCodeLength = 10
)

func (o Options) ensure() Options {
	if o.ClientID == "" {
		o.ClientID = defaultClientID
	}
	if o.CodeLength == 0 {
		o.CodeLength = defaultCodeLength
	}
	if o.CodeLength < minCodeLength {
		o.CodeLength = minCodeLength
	}
	if o.CodeLength > maxCodeLength {
		o.CodeLength = maxCodeLength
	}
	if o.CodeTTL <= 0 {
		o.CodeTTL = defaultCodeTTL
	}
	if o.AuthCodeTTL <= 0 {
		o.AuthCodeTTL = defaultAuthCodeTTL
	}
	if o.RESTAlphabet == "" {
		o.RESTAlphabet = otpgen.AlphabetNumeric
	}
	if o.FormAlphabet == "" {
		o.FormAlphabet = otpgen.AlphabetUnambiguous
	}
	if o.FlowAlias == "" {
		o.FlowAlias = defaultFlowAlias
	}
	return o
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	sessions      sessionStore
	engine        otpEngine
	authCodes     authCodeIssuer
	notifier      notifier
	idemp         idempotency.Idempotency
	validator     validator.Validator
	uid           uid.NumberID
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
	opts          Options
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Sessions      sessionStore
	Engine        otpEngine
	AuthCodes     authCodeIssuer
	Notifier      notifier
	Idempotency   idempotency.Idempotency
	Validator     validator.Validator
	UID           uid.NumberID
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
	Options       Options
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		sessions:      dep.Sessions,
		engine:        dep.Engine,
		authCodes:     dep.AuthCodes,
		notifier:      dep.Notifier,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		uid:           dep.UID,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
		opts:          dep.Options.ensure(),
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

// recordAudit publishes the audit event off the request path; delivery
// failures are logged and dropped.
func (s *Usecase) recordAudit(ctx context.Context, realm string, h entity.SessionHandle, userID int64, purpose entity.Purpose, event string) {
	msg := AuditEvent{
		Realm:      realm,
		SessionID:  h.ID,
		UserID:     userID,
		Purpose:    purpose.String(),
		Event:      event,
		OccurredAt: s.clock.Now().Unix(),
	}

	cID := instrument.GetCorrelationID(ctx)
	s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		ctx = instrument.SetCorrelationID(ctx, cID)
		if err := s.repoMessaging.PublishAudit(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "failed to publish otp audit event", "session_id", msg.SessionID, "error", err)
		}
		return nil
	})
}

// maskPhone keeps a short prefix and suffix and masks the middle. Numbers too
// short to mask are returned fully masked.
func maskPhone(phone string) string {
	const prefix, suffix = 3, 2
	if len(phone) <= prefix+suffix {
		return strings.Repeat("*", len(phone))
	}
	return phone[:prefix] + strings.Repeat("*", len(phone)-prefix-suffix) + phone[len(phone)-suffix:]
}
