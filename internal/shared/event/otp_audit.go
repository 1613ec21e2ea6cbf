package event

const OTPAuditDestination string = "otp_audit"

const (
	// OTPAuditEventVerifyFailed records an OTP submission that did not match.
	OTPAuditEventVerifyFailed = "otp_verify_failed"
	// OTPAuditEventVerifyExpired records an OTP submission against an expired code.
	OTPAuditEventVerifyExpired = "otp_verify_expired"
)

type OTPAuditMessage struct {
	Realm      string `json:"realm"`
	SessionID  string `json:"session_id"`
	UserID     int64  `json:"user_id,omitempty"`
	Purpose    string `json:"purpose"`
	Event      string `json:"event"`
	OccurredAt int64  `json:"occurred_at"`
}
