// Package broadcast resolves scalar-or-array inputs to a common length.
//
// A Stream is either a scalar or an array. A length-1 array behaves as a
// scalar. Every other array must share one length L, which becomes the output
// length; scalars repeat across all L elements. The check happens once, when
// the Plan is built, so no element is priced against mismatched inputs.
package broadcast

import (
	"github.com/jwaldner/optionkit/internal/faults"
)

// Stream is one named input: a scalar or an array of values.
type Stream struct {
	Name   string
	values []float64
	scalar bool
}

// Scalar returns a stream that repeats v.
func Scalar(name string, v float64) Stream {
	return Stream{Name: name, values: []float64{v}, scalar: true}
}

// Array returns a stream over vs. The slice is read, never written or kept
// past the call that consumes the stream.
func Array(name string, vs []float64) Stream {
	return Stream{Name: name, values: vs}
}

// Len returns the number of values in the stream (1 for a scalar).
func (s Stream) Len() int { return len(s.values) }

// Named returns a copy of s carrying name.
func (s Stream) Named(name string) Stream {
	s.Name = name
	return s
}

// Defined reports whether s was built by Scalar or Array with a non-nil slice.
// The zero Stream is undefined.
func (s Stream) Defined() bool { return s.scalar || s.values != nil }

// IsScalar reports whether the stream repeats a single value.
func (s Stream) IsScalar() bool { return s.scalar || len(s.values) == 1 }

// Plan is the resolved broadcast of a set of streams.
type Plan struct {
	n       int
	streams []Stream
}

// New checks that the streams broadcast together and returns the plan.
// An array of length 0 is allowed only next to scalars, and yields L = 0.
func New(streams ...Stream) (*Plan, error) {
	n := 1
	var owner *Stream
	for i := range streams {
		s := &streams[i]
		if s.IsScalar() {
			continue
		}
		if owner == nil {
			owner, n = s, s.Len()
			continue
		}
		if s.Len() != n {
			return nil, faults.DimensionMismatch(owner.Name, owner.Len(), s.Name, s.Len())
		}
	}
	return &Plan{n: n, streams: streams}, nil
}

// Len is the output length L.
func (p *Plan) Len() int { return p.n }

// Streams returns the planned streams in their original order.
func (p *Plan) Streams() []Stream { return p.streams }

// At returns element i of stream s under the plan's index rule: constant 0
// for scalars, identity for arrays.
func (s Stream) At(i int) float64 {
	if s.IsScalar() {
		return s.values[0]
	}
	return s.values[i]
}

// Value returns element i of the k-th planned stream.
func (p *Plan) Value(k, i int) float64 {
	return p.streams[k].At(i)
}
