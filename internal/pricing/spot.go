package pricing

import (
	"math"

	"github.com/jwaldner/optionkit/internal/dist"
)

// spotTerms are the intermediates shared by price and every Greek of the
// lognormal spot model with continuous yield q.
type spotTerms struct {
	sqrtT float64
	dq    float64 // e^{-qT}
	dr    float64 // e^{-rT}
	d1    float64
	d2    float64
	nd1   float64 // N(d1)
	nd2   float64 // N(d2)
	pdf   float64 // φ(d1)
}

func newSpotTerms(p Params) spotTerms {
	sqrtT := math.Sqrt(p.Time)
	tv := p.Volatility * sqrtT
	d1 := (math.Log(p.Spot/p.Strike)+(p.Rate-p.Dividend)*p.Time)/tv + 0.5*tv
	d2 := d1 - tv
	return spotTerms{
		sqrtT: sqrtT,
		dq:    math.Exp(-p.Dividend * p.Time),
		dr:    math.Exp(-p.Rate * p.Time),
		d1:    d1,
		d2:    d2,
		nd1:   dist.CDF(d1),
		nd2:   dist.CDF(d2),
		pdf:   dist.PDF(d1),
	}
}

// degenerate reports which boundary guard applies to p, if any.
func degenerate(p Params) (expired, collapsed bool) {
	if p.Time <= TimeFloor {
		return true, false
	}
	return false, p.Volatility*math.Sqrt(p.Time) < TotalVolFloor
}

func (s spotTerms) price(p Params, t OptionType) float64 {
	if t == Call {
		return p.Spot*s.dq*s.nd1 - p.Strike*s.dr*s.nd2
	}
	// N(-x) is evaluated directly rather than as 1-N(x) to keep precision deep OTM.
	return p.Strike*s.dr*dist.CDF(-s.d2) - p.Spot*s.dq*dist.CDF(-s.d1)
}

func (s spotTerms) vega(p Params) float64 {
	return p.Spot * s.dq * s.pdf * s.sqrtT
}

func (s spotTerms) greeks(p Params, t OptionType) Greeks {
	decay := -p.Spot * s.dq * s.pdf * p.Volatility / (2 * s.sqrtT)
	g := Greeks{
		Gamma: s.dq * s.pdf / (p.Spot * p.Volatility * s.sqrtT),
		Vega:  s.vega(p),
	}
	if t == Call {
		g.Delta = s.dq * s.nd1
		g.Theta = decay - p.Rate*p.Strike*s.dr*s.nd2 + p.Dividend*p.Spot*s.dq*s.nd1
		g.Rho = p.Strike * p.Time * s.dr * s.nd2
		g.DividendRho = -p.Time * p.Spot * s.dq * s.nd1
		return g
	}
	nmd1, nmd2 := dist.CDF(-s.d1), dist.CDF(-s.d2)
	g.Delta = -s.dq * nmd1
	g.Theta = decay + p.Rate*p.Strike*s.dr*nmd2 - p.Dividend*p.Spot*s.dq*nmd1
	g.Rho = -p.Strike * p.Time * s.dr * nmd2
	g.DividendRho = p.Time * p.Spot * s.dq * nmd1
	return g
}

// intrinsic is the exercise value of the payoff on (s, k).
func intrinsic(s, k float64, t OptionType) float64 {
	if t == Call {
		return math.Max(s-k, 0)
	}
	return math.Max(k-s, 0)
}

// expiredGreeks are the Greeks of the raw payoff: only delta survives.
func expiredGreeks(p Params, t OptionType) Greeks {
	switch {
	case t == Call && p.Spot > p.Strike:
		return Greeks{Delta: 1}
	case t == Put && p.Spot < p.Strike:
		return Greeks{Delta: -1}
	}
	return Greeks{}
}

// collapsedGreeks are the Greeks of the discounted deterministic payoff
// max(±(S·e^{-qT} - K·e^{-rT}), 0).
func collapsedGreeks(p Params, t OptionType) Greeks {
	dq := math.Exp(-p.Dividend * p.Time)
	dr := math.Exp(-p.Rate * p.Time)
	fwd, strike := p.Spot*dq, p.Strike*dr
	switch {
	case t == Call && fwd > strike:
		return Greeks{
			Delta:       dq,
			Theta:       p.Dividend*fwd - p.Rate*strike,
			Rho:         p.Time * strike,
			DividendRho: -p.Time * fwd,
		}
	case t == Put && fwd < strike:
		return Greeks{
			Delta:       -dq,
			Theta:       p.Rate*strike - p.Dividend*fwd,
			Rho:         -p.Time * strike,
			DividendRho: p.Time * fwd,
		}
	}
	return Greeks{}
}

// spotPrice prices a valid p under the spot model with yield p.Dividend.
func spotPrice(p Params, t OptionType) float64 {
	expired, collapsed := degenerate(p)
	switch {
	case expired:
		return intrinsic(p.Spot, p.Strike, t)
	case collapsed:
		return intrinsic(p.Spot*math.Exp(-p.Dividend*p.Time), p.Strike*math.Exp(-p.Rate*p.Time), t)
	}
	return newSpotTerms(p).price(p, t)
}

func spotGreeks(p Params, t OptionType) Greeks {
	expired, collapsed := degenerate(p)
	switch {
	case expired:
		return expiredGreeks(p, t)
	case collapsed:
		return collapsedGreeks(p, t)
	}
	return newSpotTerms(p).greeks(p, t)
}

func spotPriceVega(p Params, t OptionType) (float64, float64) {
	expired, collapsed := degenerate(p)
	if expired || collapsed {
		return spotPrice(p, t), 0
	}
	s := newSpotTerms(p)
	return s.price(p, t), s.vega(p)
}

// spotSeed estimates volatility from a price with the Corrado-Miller
// extension of the Brenner-Subrahmanyam at-the-money formula, working on the
// discounted forward fwd and discounted strike strike.
func spotSeed(fwd, strike, time, price float64, t OptionType) float64 {
	if time <= 0 || fwd <= 0 || strike <= 0 {
		return defaultSeed
	}
	call := price
	if t == Put {
		call = price + fwd - strike
	}
	half := (fwd - strike) / 2
	x := call - half
	disc := x*x - (fwd-strike)*(fwd-strike)/math.Pi
	if disc < 0 {
		disc = 0
	}
	sigma := math.Sqrt(2*math.Pi) / (fwd + strike) * (x + math.Sqrt(disc)) / math.Sqrt(time)
	if sigma > 0 && !math.IsInf(sigma, 0) && !math.IsNaN(sigma) {
		return sigma
	}
	// Manaster-Koehler: the volatility where vega peaks.
	if mk := math.Sqrt(2 * math.Abs(math.Log(fwd/strike)) / time); mk > 0 {
		return mk
	}
	return defaultSeed
}
