package models

import "errors"

const (
	// TokenFieldName is the form field carrying the client-computed token.
	TokenFieldName = "recaptcha-v3-token"
	// TokenInputClass marks every hidden input the client glue fills in.
	TokenInputClass = "lsp-token-input"

	DefaultThreshold = 0.5
	DefaultAction    = "homepage"

	VerifyEndpoint     = "https://www.google.com/recaptcha/api/siteverify"
	ScriptURL          = "https://www.google.com/recaptcha/api.js"
	AlternateScriptURL = "https://www.recaptcha.net/recaptcha/api.js"

	PrivacyPolicyURL  = "https://policies.google.com/privacy"
	TermsOfServiceURL = "https://policies.google.com/terms"

	// PrivacyPlaceholder and TermsPlaceholder are substituted in the attribution message.
	PrivacyPlaceholder = "%1$s"
	TermsPlaceholder   = "%2$s"

	DefaultAttributionMessage = `This site is protected by reCAPTCHA and the Google <a href="%1$s">Privacy Policy</a> and <a href="%2$s">Terms of Service</a> apply.`

	// SpamMessage is the only text an end user ever sees for a failed check,
	// whatever the underlying cause.
	SpamMessage = "Our spam filter recognize your request as spam. Please retry entering the login credentials."

	// ErrorCode tags the failure inside a form error collection.
	ErrorCode = "recaptcha_verification_failed"
)

// Form actions reported to the scoring service.
const (
	ActionLogin    = "login"
	ActionRegister = "register"
	ActionContact  = "contact"
)

var (
	// ErrTransport means the scoring service could not be reached or read.
	ErrTransport = errors.New("captcha transport failure")
	// ErrSpamScore means the call completed but the submission did not pass.
	ErrSpamScore = errors.New("captcha rejected as spam")
)

// Configuration is the resolved gate configuration for one request.
type Configuration struct {
	SiteKey            string
	SecretKey          string
	Threshold          float64
	DisplayBadge       bool
	Message            string
	UseAlternateDomain bool

	// SiteKeyFixed and SecretKeyFixed report values taken from a fixed source
	// that cannot be edited through the store.
	SiteKeyFixed   bool
	SecretKeyFixed bool
}

// Available reports whether the gate is configured. An unavailable gate is
// inert, not failing.
func (c Configuration) Available() bool {
	return c.SiteKey != "" && c.SecretKey != ""
}

// AttributionMessage returns the configured message or the default one, with
// placeholders still in place.
func (c Configuration) AttributionMessage() string {
	if c.Message != "" {
		return c.Message
	}
	return DefaultAttributionMessage
}

// ScriptOrigin returns the script URL for the configured origin.
func (c Configuration) ScriptOrigin() string {
	if c.UseAlternateDomain {
		return AlternateScriptURL
	}
	return ScriptURL
}

// Result is the outcome of one verification: Ok, or Failed with a user-facing
// reason and a cause matching ErrTransport or ErrSpamScore.
type Result struct {
	failed bool
	Reason string
	Err    error
	// Score is the reported score when the service answered, zero otherwise.
	Score float64
}

// Ok is the passing result.
func Ok() Result {
	return Result{}
}

// WithScore returns a copy of r carrying the service-reported score.
func (r Result) WithScore(score float64) Result {
	r.Score = score
	return r
}

// Failed builds a failing result. The reason is always SpamMessage so the two
// failure kinds stay indistinguishable to the submitter.
func Failed(cause error) Result {
	return Result{failed: true, Reason: SpamMessage, Err: cause}
}

func (r Result) OK() bool     { return !r.failed }
func (r Result) Failed() bool { return r.failed }

// Kind returns "ok", "transport" or "spam" for metrics and logs.
func (r Result) Kind() string {
	switch {
	case !r.failed:
		return "ok"
	case errors.Is(r.Err, ErrTransport):
		return "transport"
	default:
		return "spam"
	}
}
