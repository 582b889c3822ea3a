package core

import (
	"errors"
	"fmt"
	"strings"
)

// CodedError is implemented by domain errors that carry a machine-readable code.
type CodedError interface {
	error
	ErrorCode() string
}

// Error codes for the failure taxonomy. Every failure surfaced to chat maps
// to exactly one of these.
const (
	CodeParseIncomplete = "parse_incomplete"
	CodeUnauthorized    = "unauthorized"
	CodeHostConflict    = "host_conflict"
	CodeHostNotFound    = "host_not_found"
	CodeHostAuth        = "host_auth_failed"
	CodeInvalidState    = "invalid_state"
	CodeTransport       = "transport_failure"
)

// ParseIncompleteError marks a message that matched a workflow trigger but is
// missing required fields. Logged only, never surfaced to the channel.
type ParseIncompleteError struct {
	Workflow string
	Missing  []string
}

func (e *ParseIncompleteError) Error() string {
	return fmt.Sprintf("%s request missing %s", e.Workflow, strings.Join(e.Missing, ", "))
}

func (e *ParseIncompleteError) ErrorCode() string { return CodeParseIncomplete }

// UnauthorizedError reports an actor who is not the configured approver.
type UnauthorizedError struct {
	Actor string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("user %s is not authorized to resolve change requests", e.Actor)
}

func (e *UnauthorizedError) ErrorCode() string { return CodeUnauthorized }

// HostConflictError reports a write that the repository host rejected because
// of a stale revision marker or an already-existing branch.
type HostConflictError struct {
	Detail string
}

func (e *HostConflictError) Error() string { return e.Detail }

func (e *HostConflictError) ErrorCode() string { return CodeHostConflict }

// HostNotFoundError reports a missing repository, file, branch, or change
// request on the host.
type HostNotFoundError struct {
	Detail string
}

func (e *HostNotFoundError) Error() string { return e.Detail }

func (e *HostNotFoundError) ErrorCode() string { return CodeHostNotFound }

// InvalidStateError reports a resolve attempt against a change request that
// is no longer open.
type InvalidStateError struct {
	Number int
	State  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("change request #%d is %s, not open", e.Number, e.State)
}

func (e *InvalidStateError) ErrorCode() string { return CodeInvalidState }

// TransportError reports a failure reaching the repository host at all: DNS,
// connection, or timeout trouble rather than an API response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "host unreachable: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) ErrorCode() string { return CodeTransport }

// HostStatusError is implemented by host API errors that carry the upstream
// HTTP status, so they can be classified without importing the client package.
type HostStatusError interface {
	error
	HTTPStatus() int
}

// MapHostError classifies a repository-host failure into the domain taxonomy.
// 404 becomes HostNotFoundError, 409 and 422 become HostConflictError (the
// host reports both stale revision markers and existing branches this way),
// and auth failures keep their own code. Errors without an upstream status
// never reached the host and become TransportError; other statuses pass
// through unchanged.
func MapHostError(err error) error {
	if err == nil {
		return nil
	}
	var statusErr HostStatusError
	if !errors.As(err, &statusErr) {
		return &TransportError{Err: err}
	}
	switch statusErr.HTTPStatus() {
	case 404:
		return &HostNotFoundError{Detail: err.Error()}
	case 409, 422:
		return &HostConflictError{Detail: err.Error()}
	case 401, 403:
		return &hostAuthError{detail: err.Error()}
	default:
		return err
	}
}

type hostAuthError struct {
	detail string
}

func (e *hostAuthError) Error() string { return e.detail }

func (e *hostAuthError) ErrorCode() string { return CodeHostAuth }
