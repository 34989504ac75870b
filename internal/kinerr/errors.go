// Package kinerr defines the error taxonomy shared by the compiler,
// differentiation engine, integrators and result extraction.
package kinerr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a malformed network, rule, or an unresolved
	// symbol reference discovered during compilation.
	ErrValidation = errors.New("reactode: validation failed")

	// ErrUnsupportedFeature indicates a recognized but unsupported construct,
	// such as an unknown rule kind or a derivative order beyond the cap.
	ErrUnsupportedFeature = errors.New("reactode: unsupported feature")

	// ErrCyclicRule indicates rule substitution failed to reach a fixed
	// point within the iteration bound.
	ErrCyclicRule = errors.New("reactode: cyclic rule dependency")

	// ErrShapeMismatch indicates a joint-vector length with no valid
	// tensor-rank solution.
	ErrShapeMismatch = errors.New("reactode: shape mismatch")

	// ErrIntegration indicates solver non-convergence or step underflow.
	ErrIntegration = errors.New("reactode: integration failed")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFeature, fmt.Sprintf(format, args...))
}

func Cyclicf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCyclicRule, fmt.Sprintf(format, args...))
}

func Shapef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, fmt.Sprintf(format, args...))
}

// IntegrationError carries the last successfully reached time alongside the
// failure cause.
type IntegrationError struct {
	LastTime float64
	Reason   string
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%v: %s (last reached t=%g)", ErrIntegration, e.Reason, e.LastTime)
}

func (e *IntegrationError) Unwrap() error { return ErrIntegration }
