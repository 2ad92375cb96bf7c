package service

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for prediction errors.
var (
	ErrValidation       = errors.New("validation failed")
	ErrMissingFeature   = fmt.Errorf("%w: missing feature", ErrValidation)
	ErrModelUnavailable = errors.New("model not loaded")
	ErrInference        = errors.New("inference failed")
)

// MissingFeatureError lists the model columns a request did not supply.
type MissingFeatureError struct {
	Fields []string
}

func (e *MissingFeatureError) Error() string {
	return "missing feature(s): " + strings.Join(e.Fields, ", ")
}

// Unwrap ties the error to ErrMissingFeature and therefore ErrValidation.
func (e *MissingFeatureError) Unwrap() error { return ErrMissingFeature }

// wrapKind attaches an operation name and kind to err as "op: kind: err".
func wrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
