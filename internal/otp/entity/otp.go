package entity

import "time"

// SessionHandle identifies an authentication session in the external session
// store. All note reads and writes go through it.
type SessionHandle struct {
	Realm string
	ID    string
}

// User is the slice of the external identity store this service reads. Only
// the verified flags and the last-login marker are ever written back.
type User struct {
	ID            int64
	Realm         string
	Email         string
	PhoneNumber   string
	EmailVerified bool
	PhoneVerified bool
	Enabled       bool
	Roles         []string
	LastLoginAt   *time.Time
}

// HasRole reports whether the user holds the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NewUser carries the fields needed to register a user during signup.
type NewUser struct {
	ID          int64
	Realm       string
	Email       string
	PhoneNumber string
	Enabled     bool
}

// AuthorizationCode is the payload bound to a minted authorization code. The
// opaque code value itself is never persisted, only its keyed hash.
type AuthorizationCode struct {
	Realm     string    `json:"realm"`
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	OTPType   Purpose   `json:"otp_type"`
	IssuedAt  time.Time `json:"issued_at"`
}

// FlowExecution is one realm-scoped execution step of an authentication flow,
// carrying an optional role condition.
type FlowExecution struct {
	ID          int64
	Realm       string
	FlowAlias   string
	Requirement Requirement

	// ConditionRole is the role the condition checks; empty means the step is
	// always considered configured.
	ConditionRole string

	// ConditionNegate inverts the role check when set.
	ConditionNegate bool
}
