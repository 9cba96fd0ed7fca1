package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelMatching(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		match error
		class string
	}{
		{"validation", Invalid("spot", -1, "must be positive"), ErrValidation, "validation"},
		{"dimension", DimensionMismatch("spot", 3, "strike", 4), ErrValidation, "validation"},
		{"convergence", &ConvergenceError{Iterations: 100}, ErrConvergence, "convergence"},
		{"bounds", &BoundsError{Target: 200}, ErrBounds, "bounds"},
		{"numerical", &NumericalError{Op: "price", Value: 0}, ErrNumerical, "numerical"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			wrapped := fmt.Errorf("pricing contract: %w", c.err)
			if !errors.Is(wrapped, c.match) {
				t.Errorf("expected %v to match %v", wrapped, c.match)
			}
			if got := Class(wrapped); got != c.class {
				t.Errorf("Class() = %q, want %q", got, c.class)
			}
		})
	}
}

func TestSentinelsDoNotCrossMatch(t *testing.T) {
	err := Invalid("strike", 0, "must be positive")
	if errors.Is(err, ErrBounds) || errors.Is(err, ErrConvergence) || errors.Is(err, ErrNumerical) {
		t.Errorf("validation error matched a foreign sentinel")
	}
	if Class(errors.New("boom")) != "internal" {
		t.Errorf("untyped errors should classify as internal")
	}
}

func TestValidationErrorAs(t *testing.T) {
	err := fmt.Errorf("element 3: %w", Invalid("volatility", 0, "must be positive"))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("errors.As failed to find ValidationError")
	}
	if ve.Field != "volatility" {
		t.Errorf("Field = %q, want volatility", ve.Field)
	}
}

func TestFaultUnwrap(t *testing.T) {
	f := Fault{Index: 7, Err: &BoundsError{Target: 1}}
	if !errors.Is(f, ErrBounds) {
		t.Errorf("Fault should unwrap to its error")
	}
	if f.Error() == "" {
		t.Errorf("empty fault message")
	}
}

func TestMergeOrdersByIndex(t *testing.T) {
	parts := [][]Fault{
		{{Index: 9}, {Index: 12}},
		nil,
		{{Index: 2}},
		{{Index: 5}},
	}
	merged := Merge(parts)
	if len(merged) != 4 {
		t.Fatalf("expected 4 faults, got %d", len(merged))
	}
	for i, want := range []int{2, 5, 9, 12} {
		if merged[i].Index != want {
			t.Errorf("merged[%d].Index = %d, want %d", i, merged[i].Index, want)
		}
	}
	if Merge([][]Fault{nil, {}}) != nil {
		t.Errorf("Merge of empty parts should be nil")
	}
}
