package model

import (
	"errors"
	"fmt"
)

// ValidationError - A malformed record (negative revenue, missing timestamps).
// The record is skipped and logged, never fatal to a batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ConfigError - Attribution settings invariant violated. Fatal for the
// project's run, no partial results written.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid attribution settings: %s", e.Reason)
}

// NumericError - A model produced NaN or an impossible normalization.
// The model's computation for that conversion is skipped, sibling models
// still complete.
type NumericError struct {
	Model  string
	Reason string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("numeric failure in model %s: %s", e.Model, e.Reason)
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

func IsNumericError(err error) bool {
	var target *NumericError
	return errors.As(err, &target)
}
