package nhie

import (
	"errors"
	"fmt"
)

// AuthError signals that an OAuth access token could not be acquired. The
// token cache is left untouched so the next caller retries the grant.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string   { return fmt.Sprintf("nhie auth: %v", e.Err) }
func (e *AuthError) Unwrap() error   { return e.Err }
func (e *AuthError) Retryable() bool { return true }

// TransportError wraps network-level failures (timeout, connection refused,
// DNS). Always retryable.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string   { return fmt.Sprintf("nhie transport: %v", e.Err) }
func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Retryable() bool { return true }

// RemoteRejection carries a non-success HTTP status classified by the fixed
// taxonomy in Classify.
type RemoteRejection struct {
	StatusCode int
	Message    string
	retryable  bool
}

func (e *RemoteRejection) Error() string {
	return fmt.Sprintf("nhie rejected request with status %d: %s", e.StatusCode, e.Message)
}
func (e *RemoteRejection) Retryable() bool { return e.retryable }

// NewRemoteRejection builds a rejection from a classified outcome.
func NewRemoteRejection(status int, message string, retryable bool) *RemoteRejection {
	return &RemoteRejection{StatusCode: status, Message: message, retryable: retryable}
}

// Retryable reports whether re-attempting the operation that produced err
// could plausibly succeed. Errors that do not opt in are terminal.
func Retryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
