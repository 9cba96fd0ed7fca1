package pricing

import (
	"math"

	"github.com/jwaldner/optionkit/internal/dist"
	"github.com/jwaldner/optionkit/internal/faults"
	"github.com/jwaldner/optionkit/internal/validate"
)

// American prices American-exercise options on a dividend-paying spot with the
// Barone-Adesi-Whaley quadratic approximation, cost of carry b = r - q.
//
// The value below the early-exercise boundary I is the European value plus an
// early-exercise premium α·(S/I)^β. I is found by a bracketed Newton search on
// the smooth-pasting condition; once spot has crossed I the option is worth its
// immediate-exercise payoff.
type American struct{}

func (American) Kind() Kind { return KindAmerican }

func (American) Validate(p Params) error {
	return validateSpot(p, func(q float64) error {
		return validate.DividendYield("dividend", q)
	})
}

func (m American) Price(p Params, t OptionType) (float64, error) {
	if err := validateCall(m, p, t); err != nil {
		return 0, err
	}
	v, err := americanPrice(p, t)
	if err != nil {
		return 0, err
	}
	return v, checkFinite("american price", v)
}

func (m American) Greeks(p Params, t OptionType) (Greeks, error) {
	if err := validateCall(m, p, t); err != nil {
		return Greeks{}, err
	}
	g, err := americanGreeks(p, t)
	if err != nil {
		return Greeks{}, err
	}
	return g, checkGreeks("american greeks", g)
}

func (m American) PriceVega(p Params, t OptionType) (float64, float64, error) {
	if err := validateCall(m, p, t); err != nil {
		return 0, 0, err
	}
	v, err := americanPrice(p, t)
	if err != nil {
		return 0, 0, err
	}
	vega, err := americanVega(p, t)
	if err != nil {
		return 0, 0, err
	}
	return v, vega, checkFinite("american price", v)
}

// ImpliedVolSeed uses the European estimate; the early-exercise premium only
// shifts the answer slightly and Newton absorbs the difference.
func (American) ImpliedVolSeed(p Params, t OptionType, price float64) float64 {
	return Merton{}.ImpliedVolSeed(p, t, price)
}

// neverEarly reports whether early exercise is never optimal, in which case
// the American option is worth its European counterpart. A call needs both a
// non-positive yield and a non-negative rate: with r < 0 the deferred strike
// payment costs the holder and deep calls are exercised early.
func neverEarly(p Params, t OptionType) bool {
	if t == Call {
		return p.Dividend <= 0 && p.Rate >= 0
	}
	return p.Rate <= 0
}

// boundary is the solved early-exercise boundary and the premium it implies.
// A call boundary at +Inf or a put boundary at 0 means the boundary lies
// beyond any reachable spot and the premium is zero.
type boundary struct {
	critical float64 // I, the critical spot
	beta     float64 // exponent q2 (call) or q1 (put)
	alpha    float64 // premium coefficient A2 (call) or A1 (put)
}

func (b boundary) exercised(spot float64, t OptionType) bool {
	if t == Call {
		return spot >= b.critical
	}
	return spot <= b.critical
}

func (b boundary) premium(spot float64) float64 {
	if b.alpha == 0 {
		return 0
	}
	return b.alpha * math.Pow(spot/b.critical, b.beta)
}

// solveBoundary finds the critical spot I where the smooth-pasting condition
// g(I) = 0 holds. For a call g(s) = s - K - c(s) - (1 - e^{(b-r)T}N(d1))s/β
// increases through zero above K; for a put the mirrored g decreases through
// zero below K. The root is bracketed by doubling (call) or halving (put)
// away from K, then polished with Newton steps that fall back to bisection
// whenever a step leaves the bracket. p must be valid with Time and
// Volatility above their floors.
func solveBoundary(p Params, t OptionType) (boundary, error) {
	k, T, r, v := p.Strike, p.Time, p.Rate, p.Volatility
	b := r - p.Dividend
	vv := v * v
	tv := v * math.Sqrt(T)
	carry := math.Exp((b - r) * T)

	n := 2 * b / vv
	var mk float64
	if math.Abs(r*T) < 1e-12 {
		mk = 2 / (vv * T)
	} else {
		mk = 2 * r / (vv * (1 - math.Exp(-r*T)))
	}
	root := math.Sqrt((n-1)*(n-1) + 4*mk)

	var beta float64
	if t == Call {
		beta = (-(n - 1) + root) / 2
		if beta <= 1 {
			return boundary{}, &faults.NumericalError{Op: "american call exponent", Value: beta}
		}
	} else {
		beta = (-(n - 1) - root) / 2
	}
	perpetual := k / (1 - 1/beta)

	// eval returns g, g' and the premium coefficient at s.
	eval := func(s float64) (g, dg, alpha float64) {
		q := p
		q.Spot = s
		euro := spotPrice(q, t)
		d1 := (math.Log(s/k) + (b+vv/2)*T) / tv
		pdf := carry * dist.PDF(d1) / (tv * beta)
		if t == Call {
			held := 1 - carry*dist.CDF(d1)
			return s - k - euro - held*s/beta, held - held/beta + pdf, (s / beta) * held
		}
		held := 1 - carry*dist.CDF(-d1)
		return k - s - euro + held*s/beta, -held + held/beta + pdf, -(s / beta) * held
	}

	// The Barone-Adesi-Whaley seed overflows for small σ and long T; it only
	// starts the search and is replaced by the bracket midpoint when unusable.
	var lo, hi, s float64
	if t == Call {
		h := -(b*T + 2*tv) * k / (perpetual - k)
		s = k + (perpetual-k)*(1-math.Exp(h))
		lo, hi = k, perpetual
		if s > hi && !math.IsInf(s, 0) {
			hi = s
		}
		if !(hi > k) {
			hi = 2 * k
		}
		for {
			if g, _, _ := eval(hi); g > 0 {
				break
			}
			lo, hi = hi, 2*hi
			if hi > k*boundaryExpansion {
				return boundary{critical: math.Inf(1), beta: beta}, nil
			}
		}
	} else {
		h := (b*T - 2*tv) * k / (k - perpetual)
		s = perpetual + (k-perpetual)*math.Exp(h)
		lo, hi = perpetual, k
		if s > 0 && s < lo {
			lo = s
		}
		if !(lo > 0 && lo < k) {
			lo = k / 2
		}
		for {
			if g, _, _ := eval(lo); g > 0 {
				break
			}
			lo, hi = lo/2, lo
			if lo < k/boundaryExpansion {
				return boundary{critical: 0, beta: beta}, nil
			}
		}
	}
	if !(s > lo && s < hi) {
		s = (lo + hi) / 2
	}

	for i := 0; i < boundaryMaxIterations; i++ {
		g, dg, alpha := eval(s)
		if math.IsNaN(g) {
			return boundary{}, &faults.NumericalError{Op: "american boundary", Value: s}
		}
		if math.Abs(g) < boundaryTolerance*math.Max(k, s) || hi-lo < boundaryTolerance*s {
			return boundary{critical: s, beta: beta, alpha: alpha}, nil
		}
		// g < 0 lies on the K side of the root for both types.
		if (g < 0) == (t == Call) {
			lo = s
		} else {
			hi = s
		}
		next := s - g/dg
		if !(next > lo && next < hi) {
			next = (lo + hi) / 2
		}
		s = next
	}
	return boundary{}, &faults.ConvergenceError{Iterations: boundaryMaxIterations, Volatility: v, Residual: s}
}

func americanPrice(p Params, t OptionType) (float64, error) {
	expired, collapsed := degenerate(p)
	switch {
	case expired:
		return intrinsic(p.Spot, p.Strike, t), nil
	case neverEarly(p, t):
		return spotPrice(p, t), nil
	case collapsed:
		return math.Max(spotPrice(p, t), intrinsic(p.Spot, p.Strike, t)), nil
	}
	bd, err := solveBoundary(p, t)
	if err != nil {
		return 0, err
	}
	if bd.exercised(p.Spot, t) {
		return intrinsic(p.Spot, p.Strike, t), nil
	}
	v := spotPrice(p, t) + bd.premium(p.Spot)
	return math.Max(v, intrinsic(p.Spot, p.Strike, t)), nil
}

// americanGreeks returns analytic delta and gamma (the boundary does not
// depend on spot) and central differences for the remaining sensitivities.
func americanGreeks(p Params, t OptionType) (Greeks, error) {
	expired, collapsed := degenerate(p)
	switch {
	case expired:
		return expiredGreeks(p, t), nil
	case neverEarly(p, t):
		return spotGreeks(p, t), nil
	case collapsed:
		if intrinsic(p.Spot, p.Strike, t) >= spotPrice(p, t) {
			return expiredGreeks(p, t), nil
		}
		return collapsedGreeks(p, t), nil
	}

	bd, err := solveBoundary(p, t)
	if err != nil {
		return Greeks{}, err
	}
	if bd.exercised(p.Spot, t) {
		return expiredGreeks(p, t), nil
	}

	euro := newSpotTerms(p).greeks(p, t)
	prem := bd.premium(p.Spot)
	g := Greeks{
		Delta: euro.Delta + prem*bd.beta/p.Spot,
		Gamma: euro.Gamma + prem*bd.beta*(bd.beta-1)/(p.Spot*p.Spot),
	}

	if g.Vega, err = americanVega(p, t); err != nil {
		return Greeks{}, err
	}

	h := math.Min(timeBump, p.Time/2)
	up, down := p, p
	up.Time, down.Time = p.Time+h, p.Time-h
	dv, err := centralDifference(up, down, t, h)
	if err != nil {
		return Greeks{}, err
	}
	g.Theta = -dv

	up, down = p, p
	up.Rate, down.Rate = p.Rate+rateBump, p.Rate-rateBump
	if g.Rho, err = centralDifference(up, down, t, rateBump); err != nil {
		return Greeks{}, err
	}

	up, down = p, p
	up.Dividend = p.Dividend + dividendBump
	hq := dividendBump
	if p.Dividend >= dividendBump {
		down.Dividend = p.Dividend - dividendBump
	} else {
		// Negative yields are outside the domain: one-sided difference.
		hq = dividendBump / 2
	}
	if g.DividendRho, err = centralDifference(up, down, t, hq); err != nil {
		return Greeks{}, err
	}
	return g, nil
}

func americanVega(p Params, t OptionType) (float64, error) {
	expired, collapsed := degenerate(p)
	if expired || collapsed {
		return 0, nil
	}
	if neverEarly(p, t) {
		return newSpotTerms(p).vega(p), nil
	}
	h := math.Min(volBump, p.Volatility/2)
	up, down := p, p
	up.Volatility, down.Volatility = p.Volatility+h, p.Volatility-h
	return centralDifference(up, down, t, h)
}

// centralDifference returns (V(up) - V(down)) / (2h).
func centralDifference(up, down Params, t OptionType, h float64) (float64, error) {
	vu, err := americanPrice(up, t)
	if err != nil {
		return 0, err
	}
	vd, err := americanPrice(down, t)
	if err != nil {
		return 0, err
	}
	return (vu - vd) / (2 * h), nil
}
