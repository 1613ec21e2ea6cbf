// Package notifier delivers issued passcodes to users over email. SMS
// delivery is handled elsewhere by publishing to the message broker.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/codes"

	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/mail"
)

type Email struct {
	mail mail.Mail
	ins  instrument.Instrumentation
}

func NewEmail(m mail.Mail, ins instrument.Instrumentation) *Email {
	return &Email{mail: m, ins: ins}
}

// SendCode mails the passcode to the address. Transient SMTP failures are
// retried with capped exponential backoff before giving up.
func (e *Email) SendCode(ctx context.Context, to, code string, ttl time.Duration) (err error) {
	ctx, span := e.ins.Tracer("otp.outbound.notifier").Start(ctx, "SendCode")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	msg := mail.Message{
		To:      []string{to},
		Subject: "Your verification code",
		TextBody: fmt.Sprintf(
			"Your email verification code is: %s\n\nThis code will expire in %d minutes.",
			code, int(ttl.Minutes()),
		),
	}

	b := retry.NewExponential(500 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(3, b)

	err = retry.Do(ctx, b, func(ctx context.Context) error {
		if sendErr := e.mail.Send(ctx, msg); sendErr != nil {
			if errors.Is(sendErr, context.Canceled) || errors.Is(sendErr, context.DeadlineExceeded) {
				return sendErr
			}
			return retry.RetryableError(sendErr)
		}
		return nil
	})
	return err
}
