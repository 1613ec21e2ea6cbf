package inbound

import (
	"github.com/jacem/otpgate/internal/otp/usecase"
	"github.com/jacem/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes the JSON OTP API.
type HTTPEndpoint struct {
	uc uc
}

// Send starts an OTP exchange in login or signup mode.
func (h *HTTPEndpoint) Send(r *router.Request) (any, error) {
	var req SendRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Send(r.Context(), usecase.SendInput{
		Realm:  r.GetParam("realm"),
		Email:  req.Email,
		Method: req.Method,
	})
	if err != nil {
		return nil, err
	}

	return SendResponse{SessionID: resp.SessionID}, nil
}

// Verify checks a submitted code against the session.
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Realm:     r.GetParam("realm"),
		Email:     req.Email,
		Code:      req.Code,
		SessionID: req.SessionID,
	}); err != nil {
		return nil, err
	}

	return VerifyResponse{}, nil
}

// Login drives the two-phase login exchange; phase 1 responds with the
// challenge body, phase 2 with the login result.
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Realm:   r.GetParam("realm"),
		Email:   req.Email,
		OTPCode: req.OTPCode,
	})
	if err != nil {
		return nil, err
	}

	if resp.OTPRequired {
		return LoginChallengeResponse{
			Success:     false,
			OTPRequired: true,
			SessionID:   resp.SessionID,
			Message:     "OTP sent successfully",
		}, nil
	}

	return LoginResponse{
		UserID:         resp.UserID,
		Email:          resp.Email,
		EmailVerified:  resp.EmailVerified,
		LoginTimestamp: resp.LoginTimestamp.UnixMilli(),
	}, nil
}

// SendEmailOTP issues an email verification code.
func (h *HTTPEndpoint) SendEmailOTP(r *router.Request) (any, error) {
	var req SendEmailOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.SendEmailOTP(r.Context(), usecase.SendEmailOTPInput{
		Realm: r.GetParam("realm"),
		Email: req.Email,
	})
	if err != nil {
		return nil, err
	}

	return SendEmailOTPResponse{
		SessionID:     resp.SessionID,
		Type:          resp.Type.String(),
		ExpirySeconds: resp.ExpirySeconds,
	}, nil
}

// SendSMSOTP issues an sms verification code.
func (h *HTTPEndpoint) SendSMSOTP(r *router.Request) (any, error) {
	var req SendSMSOTPRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.SendSMSOTP(r.Context(), usecase.SendSMSOTPInput{
		Realm:       r.GetParam("realm"),
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	return SendSMSOTPResponse{
		SessionID:     resp.SessionID,
		Type:          resp.Type.String(),
		ExpirySeconds: resp.ExpirySeconds,
		MaskedPhone:   resp.MaskedPhone,
	}, nil
}

// VerifyLoginCode verifies a code and mints an authorization code.
func (h *HTTPEndpoint) VerifyLoginCode(r *router.Request) (any, error) {
	var req VerifyLoginCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyLoginCode(r.Context(), usecase.VerifyLoginCodeInput{
		Realm:     r.GetParam("realm"),
		SessionID: req.SessionID,
		OTPCode:   req.OTPCode,
	})
	if err != nil {
		return nil, err
	}

	return VerifyLoginCodeResponse{
		AuthorizationCode: resp.AuthorizationCode,
		UserID:            resp.UserID,
		Email:             resp.Email,
		OTPType:           resp.OTPType.String(),
		ExpiresIn:         resp.ExpiresIn,
	}, nil
}
