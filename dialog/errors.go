package dialog

import "fmt"

// Kind classifies a dialogue error for recovery and transport mapping.
type Kind string

const (
	// KindValidation: inbound data violates a contract (malformed phone,
	// unknown button payload). Recovered locally by re-asking.
	KindValidation Kind = "validation"
	// KindIntegrity: a state precondition is violated (budget asked without
	// a transaction type). Recovered by re-asking the missing upstream slot.
	KindIntegrity Kind = "integrity"
	// KindTransient: oracle/cache/transport timeout or 5xx. Degraded and
	// the turn continues.
	KindTransient Kind = "transient"
	// KindFatal: durable store unreachable. The turn aborts and the
	// transport returns a retryable status.
	KindFatal Kind = "fatal"
	// KindConfiguration: missing admin, vertical, or tenant. Logged; the
	// user flow continues where possible.
	KindConfiguration Kind = "configuration"
)

// Error is the typed error handlers return through the process boundary.
type Error struct {
	Kind    Kind
	LeadID  int64
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.LeadID != 0 {
		msg = fmt.Sprintf("%s (lead %d)", msg, e.LeadID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the transport should ask the sender to retry.
func (e *Error) Retryable() bool {
	return e.Kind == KindFatal
}

func fatalf(err error, format string, args ...any) *Error {
	return &Error{Kind: KindFatal, Message: fmt.Sprintf(format, args...), Err: err}
}

func integrityf(leadID int64, format string, args ...any) *Error {
	return &Error{Kind: KindIntegrity, LeadID: leadID, Message: fmt.Sprintf(format, args...)}
}
