package polyglot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pitabwire/polyglot/contract"
)

// Reason classifies an Error.
type Reason string

const (
	ReasonInternal               Reason = "InternalError"
	ReasonInvalidArgument        Reason = "InvalidArgument"
	ReasonMissingResource        Reason = "MissingResource"
	ReasonInvalidMethodSignature Reason = "InvalidMethodSignature"
)

var (
	ErrInternal               = errors.New("internal error")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrMissingResource        = errors.New("missing resource")
	ErrInvalidMethodSignature = errors.New("invalid method signature")
)

// Error is the error type returned by the engine. Errors match the sentinel
// of their reason with errors.Is.
type Error struct {
	Reason  Reason
	Message string
	Bundle  string
	Key     string
	Locale  string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Reason))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the reason of e.
func (e *Error) Is(target error) bool {
	return target != nil && target == sentinel(e.Reason)
}

func sentinel(r Reason) error {
	switch r {
	case ReasonInvalidArgument:
		return ErrInvalidArgument
	case ReasonMissingResource:
		return ErrMissingResource
	case ReasonInvalidMethodSignature:
		return ErrInvalidMethodSignature
	default:
		return ErrInternal
	}
}

// ReasonOf extracts the reason of err. Errors not produced by the engine
// are internal.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonInternal
}

func invalidArgument(format string, args ...any) *Error {
	return &Error{Reason: ReasonInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// fromContractError maps a contract package failure onto a reason.
func fromContractError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, contract.ErrInvalidMethodSignature):
		return &Error{Reason: ReasonInvalidMethodSignature, Err: err}
	case errors.Is(err, contract.ErrInvalidArgument):
		return &Error{Reason: ReasonInvalidArgument, Err: err}
	default:
		return &Error{Reason: ReasonInternal, Err: err}
	}
}
