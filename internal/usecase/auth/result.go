package auth

// Reason explains why a request is not authenticated. It is for logs, metrics and tests;
// clients always see the same rejection.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNoCredential   Reason = "no_credential"
	ReasonInvalidToken   Reason = "invalid_token"
	ReasonMissingSubject Reason = "missing_subject"
)

// Result is the outcome of authenticating one request.
// The zero value is unauthenticated.
type Result struct {
	Identity string
	Reason   Reason
}

// Authenticated returns a successful result for identity.
func Authenticated(identity string) Result {
	return Result{Identity: identity}
}

// Unauthenticated returns a failed result carrying reason.
func Unauthenticated(reason Reason) Result {
	return Result{Reason: reason}
}

// IsAuthenticated reports whether the result carries an identity.
func (r Result) IsAuthenticated() bool {
	return r.Reason == ReasonNone && r.Identity != ""
}

// Outcome labels the result for metrics and logs.
func (r Result) Outcome() string {
	if r.IsAuthenticated() {
		return "authenticated"
	}
	return "unauthenticated"
}
