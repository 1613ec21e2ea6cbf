package db

import (
	"context"
	"time"

	"github.com/jacem/otpgate/internal/otp/entity"
)

const userColumns = `id, realm, email, phone_number, email_verified, phone_verified, enabled, roles, last_login_at`

func (s *DB) scanUser(row interface{ Scan(dest ...any) error }) (*entity.User, error) {
	var u entity.User
	err := row.Scan(
		&u.ID,
		&u.Realm,
		&u.Email,
		&u.PhoneNumber,
		&u.EmailVerified,
		&u.PhoneVerified,
		&u.Enabled,
		&u.Roles,
		&u.LastLoginAt,
	)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &u, nil
}

func (s *DB) GetUserByEmail(ctx context.Context, realm, email string) (u *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByEmail")
	defer func() { s.endSpan(span, err) }()

	query := `SELECT ` + userColumns + ` FROM users WHERE realm = $1 AND email = $2`
	u, err = s.scanUser(s.conn.QueryRow(ctx, query, realm, email))
	return u, err
}

func (s *DB) GetUserByID(ctx context.Context, realm string, id int64) (u *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByID")
	defer func() { s.endSpan(span, err) }()

	query := `SELECT ` + userColumns + ` FROM users WHERE realm = $1 AND id = $2`
	u, err = s.scanUser(s.conn.QueryRow(ctx, query, realm, id))
	return u, err
}

func (s *DB) GetUserByPhone(ctx context.Context, realm, phone string) (u *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByPhone")
	defer func() { s.endSpan(span, err) }()

	query := `SELECT ` + userColumns + ` FROM users WHERE realm = $1 AND phone_number = $2`
	u, err = s.scanUser(s.conn.QueryRow(ctx, query, realm, phone))
	return u, err
}

func (s *DB) CreateUser(ctx context.Context, in entity.NewUser) (err error) {
	ctx, span := s.startSpan(ctx, "CreateUser")
	defer func() { s.endSpan(span, err) }()

	query := `
		INSERT INTO users (id, realm, email, phone_number, enabled)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = s.conn.Exec(ctx, query, in.ID, in.Realm, in.Email, in.PhoneNumber, in.Enabled)
	return s.mapError(err)
}

func (s *DB) SetEmailVerified(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "SetEmailVerified")
	defer func() { s.endSpan(span, err) }()

	query := `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`
	_, err = s.conn.Exec(ctx, query, id)
	return s.mapError(err)
}

func (s *DB) StampLastLogin(ctx context.Context, id int64, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "StampLastLogin")
	defer func() { s.endSpan(span, err) }()

	query := `UPDATE users SET last_login_at = $2, updated_at = NOW() WHERE id = $1`
	_, err = s.conn.Exec(ctx, query, id, at)
	return s.mapError(err)
}
