// Package dist provides the standard normal distribution primitives used by
// every pricing model.
package dist

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// invSqrt2Pi is 1/sqrt(2*pi).
const invSqrt2Pi = 0.3989422804014327

// CDF returns the standard normal cumulative distribution Φ(x).
// distuv evaluates it as 0.5*erfc(-x/sqrt2), which keeps full relative
// precision in the lower tail and makes Φ(-x) = 1-Φ(x) hold to ~1e-16.
func CDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// PDF returns the standard normal density φ(x).
func PDF(x float64) float64 {
	return invSqrt2Pi * math.Exp(-0.5*x*x)
}
