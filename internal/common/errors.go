// Package common defines shared constants and error kinds used across the
// transport, service and repository layers. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Identity and session kinds.
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrUnknownIdentity    = errors.New("unknown identity")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInfrastructure     = errors.New("infrastructure error")

	// Ownership checks done by business collaborators.
	ErrForbidden = errors.New("forbidden")
)

// kinds lists every sentinel that KindOf reports, most specific first.
var kinds = []error{
	ErrValidation,
	ErrInvalidCredentials,
	ErrUnauthenticated,
	ErrInvalidToken,
	ErrTokenExpired,
	ErrUnknownIdentity,
	ErrAlreadyExists,
	ErrForbidden,
	ErrorNotFound,
	ErrInfrastructure,
}

// OpError is a typed operation error. Kind is one of the sentinels above,
// Err is an optional underlying cause. Do not put secrets in Msg.
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *OpError) Error() string {
	s := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds an OpError without a cause.
func NewError(op string, kind error, msg string) error {
	return &OpError{Op: op, Kind: kind, Msg: msg}
}

// WrapError builds an OpError around cause.
func WrapError(op string, kind error, cause error) error {
	return &OpError{Op: op, Kind: kind, Err: cause}
}

// KindOf returns the sentinel kind carried by err, or nil when err matches
// none of them. The outermost OpError decides over kinds found in its cause.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) && opErr.Kind != nil {
		return opErr.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
