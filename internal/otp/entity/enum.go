package entity

// Purpose is the logical reason a passcode was issued. Codes issued for one
// purpose never validate against another, even inside the same session.
type Purpose string

const (
	// PurposeLogin is used by the two-phase login endpoint.
	PurposeLogin Purpose = "login"

	// PurposeSignup is used when the send endpoint registers a new user.
	PurposeSignup Purpose = "signup"

	// PurposeEmail is used for email address verification codes.
	PurposeEmail Purpose = "email"

	// PurposeSMS is used for phone number verification codes.
	PurposeSMS Purpose = "sms"
)

func (p Purpose) String() string {
	return string(p)
}

// PurposeFromString parses a purpose, returning "" for unknown values.
func PurposeFromString(s string) Purpose {
	switch Purpose(s) {
	case PurposeLogin, PurposeSignup, PurposeEmail, PurposeSMS:
		return Purpose(s)
	default:
		return ""
	}
}

// Outcome is the result of verifying a submitted passcode.
type Outcome int

const (
	// OutcomeNotFound means no code exists for the purpose; the caller must restart.
	OutcomeNotFound Outcome = iota

	// OutcomeExpired means the code's TTL elapsed; the record is deleted as a side effect.
	OutcomeExpired

	// OutcomeInvalid means the submitted code does not match; the record is kept.
	OutcomeInvalid

	// OutcomeValid means the code matched and was consumed.
	OutcomeValid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeExpired:
		return "expired"
	default:
		return "not_found"
	}
}

// Requirement classifies an authentication flow execution step.
type Requirement string

const (
	RequirementRequired    Requirement = "REQUIRED"
	RequirementAlternative Requirement = "ALTERNATIVE"
	RequirementConditional Requirement = "CONDITIONAL"
	RequirementDisabled    Requirement = "DISABLED"
)
