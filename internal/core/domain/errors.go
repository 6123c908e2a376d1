package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error with a stable code.
//
// Codes look like "RC-<AREA>-<NNNN>". The last four digits loosely follow
// HTTP status semantics (4xxx caller error, 5xxx node-side failure) so
// adapters can map them without a lookup table. For protocol-facing errors
// Message is the exact string written to clients.
type DomainError struct {
	Code    string // e.g. "RC-SESS-4040"
	Message string // wire-safe message
	Details string // optional context, never sent to chat clients
	Cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a DomainError.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error carrying details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError reports whether err is a DomainError with the given code.
// An empty code matches any DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the code from err, or "" if it is not a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Reason returns the wire-safe message for err. Errors that are not
// DomainErrors collapse to the internal error message so nothing unexpected
// leaks to clients.
func Reason(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ErrInternal.Message
}

// ============================================================================
// Protocol Errors (PROTO)
// ============================================================================

var (
	// ErrBadJSON indicates a frame that is not a JSON object.
	ErrBadJSON = NewDomainError("RC-PROTO-4000", "bad_json")

	// ErrUnknownType indicates a frame whose type is not a known message kind.
	ErrUnknownType = NewDomainError("RC-PROTO-4001", "unknown_type")

	// ErrUnexpectedType indicates a known kind sent on the wrong channel.
	ErrUnexpectedType = NewDomainError("RC-PROTO-4002", "unexpected_type")

	// ErrExpectedLogin indicates the first frame on a connection was not a login.
	ErrExpectedLogin = NewDomainError("RC-PROTO-4003", "expected login")

	// ErrLoginTimeout indicates no login frame arrived in time.
	ErrLoginTimeout = NewDomainError("RC-PROTO-4080", "login timeout")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrInvalidCredentials indicates the backend rejected the username/password.
	ErrInvalidCredentials = NewDomainError("RC-AUTH-4010", "invalid")

	// ErrAlreadyOnline indicates the username already has a live session.
	ErrAlreadyOnline = NewDomainError("RC-AUTH-4090", "already_online")

	// ErrLoginRateLimited indicates too many login attempts for a username.
	ErrLoginRateLimited = NewDomainError("RC-AUTH-4290", "rate_limited")

	// ErrAuthUnavailable indicates the authentication backend could not be reached.
	ErrAuthUnavailable = NewDomainError("RC-AUTH-5030", "auth_unavailable")

	// ErrAdminUnauthorized indicates a control-plane call without a valid admin token.
	ErrAdminUnauthorized = NewDomainError("RC-AUTH-4011", "admin token required")

	// ErrAdminForbidden indicates a control-plane call from an address outside the allow list.
	ErrAdminForbidden = NewDomainError("RC-AUTH-4030", "address not allowed")

	// ErrTooManyRequests indicates the control plane is rate limiting the caller.
	ErrTooManyRequests = NewDomainError("RC-SYS-4290", "too many requests")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrUserNotOnline indicates a unicast target without a live session.
	ErrUserNotOnline = NewDomainError("RC-SESS-4040", "user_not_online")

	// ErrSendBufferFull indicates a session whose outbound queue is saturated.
	ErrSendBufferFull = NewDomainError("RC-SESS-5031", "send buffer full")

	// ErrSessionClosed indicates a send on a closed session.
	ErrSessionClosed = NewDomainError("RC-SESS-4100", "session closed")
)

// ============================================================================
// Ring and Election Errors (RING, ELEC)
// ============================================================================

var (
	// ErrNodeNotFound indicates an id that is not a ring member.
	ErrNodeNotFound = NewDomainError("RC-RING-4040", "node not found")

	// ErrPeerUnreachable indicates a failed or timed-out send to a peer.
	ErrPeerUnreachable = NewDomainError("RC-RING-5030", "peer unreachable")

	// ErrElectionInProgress indicates a start request while an election runs.
	ErrElectionInProgress = NewDomainError("RC-ELEC-4090", "election already in progress")
)

// ============================================================================
// System and Argument Errors (SYS, ARG)
// ============================================================================

var (
	// ErrInternal indicates an unexpected node-side failure.
	ErrInternal = NewDomainError("RC-SYS-5000", "internal error")

	// ErrServiceUnavailable indicates the node is shutting down.
	ErrServiceUnavailable = NewDomainError("RC-SYS-5030", "service unavailable")

	// ErrInvalidArgument indicates a malformed argument.
	ErrInvalidArgument = NewDomainError("RC-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("RC-ARG-1002", "missing required argument")
)
