// Package authcode mints and redeems single-use authorization codes backed
// by Redis. Only a keyed hash of the code is stored, so a dump of the cache
// never yields redeemable codes.
package authcode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/pkg/clock"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/pkg/hash"
	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/uid"
)

const keyPrefix = "otpgate:authcode:"

type Issuer struct {
	client *redis.Client
	hmac   hash.Hash
	oid    uid.StringID
	clock  clock.Clocker
	ins    instrument.Instrumentation
}

func NewIssuer(client *redis.Client, hmac hash.Hash, oid uid.StringID, clk clock.Clocker, ins instrument.Instrumentation) *Issuer {
	return &Issuer{
		client: client,
		hmac:   hmac,
		oid:    oid,
		clock:  clk,
		ins:    ins,
	}
}

func (i *Issuer) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return i.ins.Tracer("otp.outbound.authcode").Start(ctx, name)
}

func (i *Issuer) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (i *Issuer) key(code string) (string, error) {
	sum, err := i.hmac.Hash(code)
	if err != nil {
		return "", err
	}
	return keyPrefix + string(sum), nil
}

// Issue mints an opaque code bound to the payload and stores it under the
// code's keyed hash for the given TTL.
func (i *Issuer) Issue(ctx context.Context, payload entity.AuthorizationCode, ttl time.Duration) (code string, err error) {
	ctx, span := i.startSpan(ctx, "Issue")
	defer func() { i.endSpan(span, err) }()

	payload.IssuedAt = i.clock.Now()
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	code = i.oid.Generate()
	key, err := i.key(code)
	if err != nil {
		return "", err
	}

	if err = i.client.Set(ctx, key, body, ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Redeem consumes a code atomically and returns its payload. An unknown,
// expired, already-redeemed, or wrong-realm code yields goerror.ErrNotFound.
func (i *Issuer) Redeem(ctx context.Context, realm, code string) (payload *entity.AuthorizationCode, err error) {
	ctx, span := i.startSpan(ctx, "Redeem")
	defer func() { i.endSpan(span, err) }()

	key, err := i.key(code)
	if err != nil {
		return nil, err
	}

	raw, err := i.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, goerror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var out entity.AuthorizationCode
	if err = json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out.Realm != realm {
		return nil, goerror.ErrNotFound
	}

	return &out, nil
}
