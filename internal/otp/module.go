package otp

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jacem/otpgate/internal/otp/inbound"
	"github.com/jacem/otpgate/internal/otp/lifecycle"
	"github.com/jacem/otpgate/internal/otp/outbound/authcode"
	"github.com/jacem/otpgate/internal/otp/outbound/db"
	"github.com/jacem/otpgate/internal/otp/outbound/mq"
	"github.com/jacem/otpgate/internal/otp/outbound/notifier"
	"github.com/jacem/otpgate/internal/otp/outbound/session"
	"github.com/jacem/otpgate/internal/otp/usecase"
	"github.com/jacem/otpgate/internal/pkg/clock"
	"github.com/jacem/otpgate/internal/pkg/config"
	"github.com/jacem/otpgate/internal/pkg/goroutine"
	"github.com/jacem/otpgate/internal/pkg/hash"
	"github.com/jacem/otpgate/internal/pkg/idempotency"
	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/mail"
	"github.com/jacem/otpgate/internal/pkg/messaging"
	"github.com/jacem/otpgate/internal/pkg/otpgen"
	"github.com/jacem/otpgate/internal/pkg/router"
	"github.com/jacem/otpgate/internal/pkg/uid"
	"github.com/jacem/otpgate/internal/pkg/validator"
)

type Dependency struct {
	DBConn      *pgxpool.Pool              `validate:"required"`
	CacheConn   *redis.Client              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Messaging   messaging.Publisher        `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	OID         uid.StringID               `validate:"required"`
	HMAC        hash.Hash                  `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	opts := usecase.Options{
		ClientID:     dep.Config.GetString("modules.otp.client_id"),
		CodeLength:   dep.Config.GetInt("modules.otp.code_length"),
		CodeTTL:      dep.Config.GetSecond("modules.otp.code_ttl_seconds"),
		AuthCodeTTL:  dep.Config.GetSecond("modules.otp.auth_code_ttl_seconds"),
		RESTAlphabet: dep.Config.GetString("modules.otp.rest_alphabet"),
		FormAlphabet: dep.Config.GetString("modules.otp.form_alphabet"),
		FlowAlias:    dep.Config.GetString("modules.otp.flow_alias"),
	}

	sessions := session.NewStore(
		dep.CacheConn,
		dep.UUID,
		dep.Config.GetMinute("modules.otp.session_ttl_minutes"),
		dep.Instrument,
	)
	engine := lifecycle.NewEngine(sessions, otpgen.NewRandom(), dep.Clock)
	authCodes := authcode.NewIssuer(dep.CacheConn, dep.HMAC, dep.OID, dep.Clock, dep.Instrument)
	repoDB := db.NewDB(dep.DBConn, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)
	emailNotifier := notifier.NewEmail(dep.Mail, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoDB:        repoDB,
		RepoMessaging: repoMsg,
		Sessions:      sessions,
		Engine:        engine,
		AuthCodes:     authCodes,
		Notifier:      emailNotifier,
		Idempotency:   dep.Idempotency,
		Validator:     dep.Validator,
		UID:           dep.UID,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
		Options:       opts,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
