package rpc

import "fmt"

// Error is the common surface of every classified RPC failure. Exactly one
// Error value is produced per failed call; callers switch on the concrete
// type (TimeoutError, NetworkError, ServerError, UserError) via errors.As.
type Error interface {
	error
	rpcError()
}

// TimeoutError reports that the deadline elapsed before the exchange completed.
type TimeoutError struct{}

func (*TimeoutError) Error() string { return "timed out waiting for server" }
func (*TimeoutError) rpcError()     {}

// NetworkError reports that the transport failed before an HTTP response was
// obtainable, or that a mandatory response body could not be read.
type NetworkError struct{}

func (*NetworkError) Error() string { return "a network error occurred" }
func (*NetworkError) rpcError()     {}

// ServerError reports a response the server contract does not allow: a
// non-2xx status with no structured user message, or a 2xx body that is not
// valid JSON. Status is 0 when no HTTP status was available.
type ServerError struct {
	Message string
	Status  int
}

func (e *ServerError) Error() string { return "Error talking to server: " + e.Message }
func (*ServerError) rpcError()       {}

// Is400 reports whether the status is a client error in [400,499].
func (e *ServerError) Is400() bool { return e.Status >= 400 && e.Status <= 499 }

// Is500 reports whether the status is a server error in [500,599].
func (e *ServerError) Is500() bool { return e.Status >= 500 && e.Status <= 599 }

// UserError carries a server-supplied message meant for end-user display,
// taken verbatim from the user_error_message field of a non-2xx JSON body.
type UserError struct {
	Message string
	Status  int
}

func (e *UserError) Error() string { return e.Message }
func (*UserError) rpcError()       {}

// statusError formats the diagnostic for a non-2xx response from its status
// line and optional body text.
func statusError(statusLine, text string, status int) *ServerError {
	msg := statusLine
	if text != "" {
		msg = fmt.Sprintf("%s, %s", statusLine, text)
	}
	return &ServerError{Message: msg, Status: status}
}
