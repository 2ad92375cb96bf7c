package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrInvalidBody     = errors.New("invalid request body")
	ErrBodyTooLarge    = errors.New("request body too large")
	ErrInternal        = errors.New("internal server error")
	ErrNilDependencies = errors.New("api dependencies are nil")
)

// WrapKind attaches an operation name and kind to err as "op: kind: err".
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// NewKind reports kind for op without a further cause.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}
