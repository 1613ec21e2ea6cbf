package event

const OTPSMSDeliveryDestination string = "otp_sms_delivery"

type OTPSMSDeliveryMessage struct {
	Realm         string `json:"realm"`
	SessionID     string `json:"session_id"`
	PhoneNumber   string `json:"phone_number"`
	Code          string `json:"code"`
	ExpirySeconds int64  `json:"expiry_seconds"`
}
