// Package validate holds the per-field domain checks run before any pricing
// arithmetic touches an input.
package validate

import (
	"math"

	"github.com/jwaldner/optionkit/internal/faults"
)

// MaxDividendYield is the largest continuous dividend yield accepted.
const MaxDividendYield = 1.0

// Finite rejects NaN and ±Inf.
func Finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return faults.Invalid(field, v, "must be finite")
	}
	return nil
}

// Positive requires a finite value > 0.
func Positive(field string, v float64) error {
	if err := Finite(field, v); err != nil {
		return err
	}
	if v <= 0 {
		return faults.Invalid(field, v, "must be positive")
	}
	return nil
}

// NonNegative requires a finite value >= 0.
func NonNegative(field string, v float64) error {
	if err := Finite(field, v); err != nil {
		return err
	}
	if v < 0 {
		return faults.Invalid(field, v, "must not be negative")
	}
	return nil
}

// DividendYield requires 0 <= q <= MaxDividendYield.
func DividendYield(field string, q float64) error {
	if err := NonNegative(field, q); err != nil {
		return err
	}
	if q > MaxDividendYield {
		return faults.Invalid(field, q, "exceeds the maximum dividend yield")
	}
	return nil
}

// Zero requires v == 0, for inputs a model does not take.
func Zero(field string, v float64, model string) error {
	if err := Finite(field, v); err != nil {
		return err
	}
	if v != 0 {
		return faults.Invalid(field, v, "is not accepted by the "+model+" model")
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
