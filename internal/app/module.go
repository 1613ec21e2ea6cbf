package app

import (
	"log/slog"
	"os"

	"github.com/jacem/otpgate/internal/otp"
)

func (a *App) initModules() {
	if err := otp.New(otp.Dependency{
		DBConn:      a.dbConn,
		CacheConn:   a.cacheConn,
		Goroutine:   a.goroutine,
		Router:      a.router,
		Idempotency: a.idemp,
		Messaging:   a.messaging,
		Mail:        a.mail,
		Config:      a.config,
		Instrument:  a.ins,
		UID:         a.uid,
		UUID:        a.uuid,
		OID:         a.oid,
		HMAC:        a.hmac,
		Clock:       a.clock,
		Validator:   a.validator,
	}); err != nil {
		slog.Error("failed to init module otp", "error", err)
		os.Exit(1)
	}
}
