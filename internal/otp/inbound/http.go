package inbound

import (
	"context"

	"github.com/jacem/otpgate/internal/otp/usecase"
	"github.com/jacem/otpgate/internal/pkg/router"
)

type uc interface {
	Send(ctx context.Context, in usecase.SendInput) (*usecase.SendOutput, error)
	Verify(ctx context.Context, in usecase.VerifyInput) error
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)

	SendEmailOTP(ctx context.Context, in usecase.SendEmailOTPInput) (*usecase.SendEmailOTPOutput, error)
	SendSMSOTP(ctx context.Context, in usecase.SendSMSOTPInput) (*usecase.SendSMSOTPOutput, error)
	VerifyLoginCode(ctx context.Context, in usecase.VerifyLoginCodeInput) (*usecase.VerifyLoginCodeOutput, error)

	FormChallenge(ctx context.Context, in usecase.FormChallengeInput) (*usecase.FormState, error)
	FormSubmit(ctx context.Context, in usecase.FormSubmitInput) (*usecase.FormState, error)
	FormResend(ctx context.Context, in usecase.FormResendInput) (*usecase.FormState, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Legacy OTP API
	r.POST("/realms/:realm/otp-api/send", end.Send)
	r.POST("/realms/:realm/otp-api/verify", end.Verify)
	r.POST("/realms/:realm/otp-api/login", end.Login)

	// Consolidated OTP API
	r.POST("/realms/:realm/otp-api/otp/send/email", end.SendEmailOTP)
	r.POST("/realms/:realm/otp-api/otp/send/sms", end.SendSMSOTP)
	r.POST("/realms/:realm/otp-api/otp/login/verify-code", end.VerifyLoginCode)

	// Interactive form flow
	form := &FormEndpoint{uc: uc}
	r.GETRaw("/realms/:realm/login/otp", form.Show())
	r.POSTRaw("/realms/:realm/login/otp", form.Submit())
}
