package manager

import "errors"

// ErrAuthenticationMissing means no resolved identity accompanied the call.
var ErrAuthenticationMissing = errors.New("authentication missing")

// SystemError wraps a store or policy-data failure on an administrative path.
// Decision paths never surface it; they convert it to a deny plus an
// error-kind audit event.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	return "authorization system error during " + e.Op + ": " + e.Err.Error()
}

func (e *SystemError) Unwrap() error { return e.Err }
