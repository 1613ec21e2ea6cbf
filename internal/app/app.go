package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jacem/otpgate/internal/pkg/clock"
	"github.com/jacem/otpgate/internal/pkg/config"
	"github.com/jacem/otpgate/internal/pkg/goroutine"
	"github.com/jacem/otpgate/internal/pkg/hash"
	"github.com/jacem/otpgate/internal/pkg/idempotency"
	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/mail"
	"github.com/jacem/otpgate/internal/pkg/messaging"
	"github.com/jacem/otpgate/internal/pkg/router"
	"github.com/jacem/otpgate/internal/pkg/uid"
	"github.com/jacem/otpgate/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash
	uid       uid.NumberID
	oid       uid.StringID
	uuid      uid.StringID

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	mail      mail.Mail
	messaging messaging.Publisher

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initCache()
	app.initMail()
	app.initMessaging()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
