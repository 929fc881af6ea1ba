package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNoTurns       = errors.New("relay: at least one turn is required")
	ErrUnknownRole   = errors.New("relay: unknown role")
	ErrNoSynthesizer = errors.New("relay: no speech synthesizer is configured")
	ErrNetwork       = errors.New("provider unreachable or returned an error")
	ErrParse         = errors.New("unexpected provider response")
	errEmptyResponse = errors.New("empty choices in response")
)

// Error is returned when the completion or synthesis provider fails. It
// matches ErrNetwork or ErrParse with errors.Is, as well as the cause.
type Error struct {
	// Stage is "completion" or "synthesis".
	Stage string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay: %s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newError(stage string, err error) *Error {
	return &Error{
		Stage: stage,
		Kind:  classify(err),
		Err:   err,
	}
}

func classify(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, errEmptyResponse) {
		return ErrParse
	}
	return ErrNetwork
}
