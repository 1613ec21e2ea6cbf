// Package session stores authentication sessions in Redis. Each session is a
// hash holding the owning client, an optional bound user, and a flat bag of
// notes, all sharing one TTL.
package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/uid"
)

const (
	keyPrefix        = "otpgate:session:"
	pendingKeyPrefix = "otpgate:pending-login:"

	fieldClientID = "client_id"
	fieldUserID   = "user_id"
	notePrefix    = "note:"
)

type Store struct {
	client *redis.Client
	uuid   uid.StringID
	ttl    time.Duration
	ins    instrument.Instrumentation
}

const defaultTTL = 30 * time.Minute

func NewStore(client *redis.Client, uuid uid.StringID, ttl time.Duration, ins instrument.Instrumentation) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		client: client,
		uuid:   uuid,
		ttl:    ttl,
		ins:    ins,
	}
}

func (s *Store) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.outbound.session").Start(ctx, name)
}

func (s *Store) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func key(h entity.SessionHandle) string {
	return keyPrefix + h.Realm + ":" + h.ID
}

// Create starts a fresh session owned by the given client.
func (s *Store) Create(ctx context.Context, realm, clientID string) (h entity.SessionHandle, err error) {
	ctx, span := s.startSpan(ctx, "Create")
	defer func() { s.endSpan(span, err) }()

	h = entity.SessionHandle{Realm: realm, ID: s.uuid.Generate()}
	if err = s.client.HSet(ctx, key(h), fieldClientID, clientID).Err(); err != nil {
		return entity.SessionHandle{}, err
	}
	if err = s.client.Expire(ctx, key(h), s.ttl).Err(); err != nil {
		return entity.SessionHandle{}, err
	}

	return h, nil
}

// Get resolves a session by id, returning goerror.ErrNotFound when it does
// not exist or already lapsed.
func (s *Store) Get(ctx context.Context, realm, id string) (h entity.SessionHandle, err error) {
	ctx, span := s.startSpan(ctx, "Get")
	defer func() { s.endSpan(span, err) }()

	h = entity.SessionHandle{Realm: realm, ID: id}
	n, err := s.client.Exists(ctx, key(h)).Result()
	if err != nil {
		return entity.SessionHandle{}, err
	}
	if n == 0 {
		return entity.SessionHandle{}, goerror.ErrNotFound
	}

	return h, nil
}

// BindUser attaches the authenticated user to the session.
func (s *Store) BindUser(ctx context.Context, h entity.SessionHandle, userID int64) (err error) {
	ctx, span := s.startSpan(ctx, "BindUser")
	defer func() { s.endSpan(span, err) }()

	err = s.client.HSet(ctx, key(h), fieldUserID, strconv.FormatInt(userID, 10)).Err()
	return err
}

// User returns the user bound to the session, or goerror.ErrNotFound when
// none was bound.
func (s *Store) User(ctx context.Context, h entity.SessionHandle) (id int64, err error) {
	ctx, span := s.startSpan(ctx, "User")
	defer func() { s.endSpan(span, err) }()

	raw, err := s.client.HGet(ctx, key(h), fieldUserID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, goerror.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	id, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, goerror.ErrNotFound
	}
	return id, nil
}

// GetNote reads one note, returning goerror.ErrNotFound when absent.
func (s *Store) GetNote(ctx context.Context, h entity.SessionHandle, name string) (value string, err error) {
	ctx, span := s.startSpan(ctx, "GetNote")
	defer func() { s.endSpan(span, err) }()

	value, err = s.client.HGet(ctx, key(h), notePrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", goerror.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetNote writes one note.
func (s *Store) SetNote(ctx context.Context, h entity.SessionHandle, name, value string) (err error) {
	ctx, span := s.startSpan(ctx, "SetNote")
	defer func() { s.endSpan(span, err) }()

	err = s.client.HSet(ctx, key(h), notePrefix+name, value).Err()
	return err
}

// RemoveNote deletes one note. Removing an absent note is not an error.
func (s *Store) RemoveNote(ctx context.Context, h entity.SessionHandle, name string) (err error) {
	ctx, span := s.startSpan(ctx, "RemoveNote")
	defer func() { s.endSpan(span, err) }()

	err = s.client.HDel(ctx, key(h), notePrefix+name).Err()
	return err
}

func pendingKey(realm, email string) string {
	return pendingKeyPrefix + realm + ":" + email
}

// SetPendingLogin indexes the session as the live login attempt for the
// email, so a follow-up request carrying only the email can find it again.
func (s *Store) SetPendingLogin(ctx context.Context, realm, email, sessionID string) (err error) {
	ctx, span := s.startSpan(ctx, "SetPendingLogin")
	defer func() { s.endSpan(span, err) }()

	err = s.client.Set(ctx, pendingKey(realm, email), sessionID, s.ttl).Err()
	return err
}

// PendingLogin resolves the live login attempt for the email, returning
// goerror.ErrNotFound when none is in flight.
func (s *Store) PendingLogin(ctx context.Context, realm, email string) (sessionID string, err error) {
	ctx, span := s.startSpan(ctx, "PendingLogin")
	defer func() { s.endSpan(span, err) }()

	sessionID, err = s.client.Get(ctx, pendingKey(realm, email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", goerror.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// ClearPendingLogin drops the login attempt index for the email.
func (s *Store) ClearPendingLogin(ctx context.Context, realm, email string) (err error) {
	ctx, span := s.startSpan(ctx, "ClearPendingLogin")
	defer func() { s.endSpan(span, err) }()

	err = s.client.Del(ctx, pendingKey(realm, email)).Err()
	return err
}
