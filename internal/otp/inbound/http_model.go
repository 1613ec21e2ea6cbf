package inbound

type SendRequest struct {
	Email  string `json:"email"`
	Method string `json:"method"`
}

type SendResponse struct {
	SessionID string `json:"sessionId"`
}

func (SendResponse) Message() string {
	return "OTP sent successfully"
}

type VerifyRequest struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	SessionID string `json:"sessionId"`
}

type VerifyResponse struct{}

func (VerifyResponse) Message() string {
	return "OTP verified successfully"
}

type LoginRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otpCode"`
}

// LoginChallengeResponse is the whole phase-1 body. The contract predates the
// standard envelope: success is false while a code is pending.
type LoginChallengeResponse struct {
	Success     bool   `json:"success"`
	OTPRequired bool   `json:"otpRequired"`
	SessionID   string `json:"sessionId"`
	Message     string `json:"message"`
}

func (r LoginChallengeResponse) Envelope() any {
	return r
}

type LoginResponse struct {
	UserID         int64  `json:"userId"`
	Email          string `json:"email"`
	EmailVerified  bool   `json:"emailVerified"`
	LoginTimestamp int64  `json:"loginTimestamp"`
}

func (LoginResponse) Message() string {
	return "Login successful"
}

type SendEmailOTPRequest struct {
	Email string `json:"email"`
}

type SendEmailOTPResponse struct {
	SessionID     string `json:"sessionId"`
	Type          string `json:"type"`
	ExpirySeconds int64  `json:"expirySeconds"`
}

func (SendEmailOTPResponse) Message() string {
	return "OTP sent successfully"
}

type SendSMSOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type SendSMSOTPResponse struct {
	SessionID     string `json:"sessionId"`
	Type          string `json:"type"`
	ExpirySeconds int64  `json:"expirySeconds"`
	MaskedPhone   string `json:"maskedPhone"`
}

func (SendSMSOTPResponse) Message() string {
	return "OTP sent successfully"
}

type VerifyLoginCodeRequest struct {
	SessionID string `json:"sessionId"`
	OTPCode   string `json:"otpCode"`
}

type VerifyLoginCodeResponse struct {
	AuthorizationCode string `json:"authorizationCode"`
	UserID            int64  `json:"userId"`
	Email             string `json:"email"`
	OTPType           string `json:"otpType"`
	ExpiresIn         int64  `json:"expiresIn"`
}

func (VerifyLoginCodeResponse) Message() string {
	return "OTP verified successfully"
}
