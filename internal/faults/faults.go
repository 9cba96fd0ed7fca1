// Package faults defines the error taxonomy shared by the pricing engine.
//
// Every failure the engine can produce is one of four typed errors. Each type
// matches its sentinel through errors.Is, so callers can branch on the class
// without caring about the concrete payload:
//
//	if errors.Is(err, faults.ErrBounds) { ... }
//
// Batch calls running in collect-errors mode report per-element Fault markers
// instead of aborting.
package faults

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinels for errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrConvergence = errors.New("convergence error")
	ErrBounds      = errors.New("bounds error")
	ErrNumerical   = errors.New("numerical error")
)

// ValidationError reports a malformed or out-of-domain input.
type ValidationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s=%g %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConvergenceError reports that the volatility solver ran out of iterations,
// fallback included, without meeting tolerance.
type ConvergenceError struct {
	Iterations int
	Volatility float64
	Residual   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("convergence error: no solution after %d iterations (vol=%g, residual=%g)",
		e.Iterations, e.Volatility, e.Residual)
}

func (e *ConvergenceError) Is(target error) bool { return target == ErrConvergence }

// BoundsError reports a target price outside the prices reachable over the
// admissible volatility range.
type BoundsError struct {
	Target    float64
	Low       float64
	High      float64
	PriceLow  float64
	PriceHigh float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("bounds error: target price %g outside [%g, %g] reachable for vol in [%g, %g]",
		e.Target, e.PriceLow, e.PriceHigh, e.Low, e.High)
}

func (e *BoundsError) Is(target error) bool { return target == ErrBounds }

// NumericalError flags a non-finite or out-of-range result from a computation
// that should not produce one.
type NumericalError struct {
	Op    string
	Value float64
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error: %s produced %g", e.Op, e.Value)
}

func (e *NumericalError) Is(target error) bool { return target == ErrNumerical }

// Invalid builds a ValidationError.
func Invalid(field string, value float64, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// DimensionMismatch builds the ValidationError raised when two array inputs
// cannot be broadcast together.
func DimensionMismatch(a string, lenA int, b string, lenB int) error {
	return &ValidationError{
		Reason: fmt.Sprintf("dimension mismatch: %s has length %d, %s has length %d", a, lenA, b, lenB),
	}
}

// Fault marks a failed element of a batch.
type Fault struct {
	Index int
	Err   error
}

func (f Fault) Error() string {
	return fmt.Sprintf("index %d: %v", f.Index, f.Err)
}

func (f Fault) Unwrap() error { return f.Err }

// Merge concatenates per-worker fault lists and orders them by index.
func Merge(parts [][]Fault) []Fault {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	if n == 0 {
		return nil
	}
	out := make([]Fault, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Class names the category of err for logs and API payloads.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrBounds):
		return "bounds"
	case errors.Is(err, ErrConvergence):
		return "convergence"
	case errors.Is(err, ErrNumerical):
		return "numerical"
	default:
		return "internal"
	}
}
