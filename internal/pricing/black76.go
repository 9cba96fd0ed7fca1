package pricing

import (
	"math"

	"github.com/jwaldner/optionkit/internal/validate"
)

// Black76 prices options on a forward. Params.Spot is the forward price F.
//
// The model is the spot model with the yield set to the rate: F·e^{-rT}
// plays the part of S·e^{-qT} and d1 reduces to (ln(F/K) + σ²T/2)/(σ√T).
// Because the forward does not move with r, rho is the total derivative
// -T·V, which is the spot rho plus the dividend rho of that mapping.
type Black76 struct{}

func (Black76) Kind() Kind { return KindBlack76 }

func (Black76) Validate(p Params) error {
	return validate.First(
		validate.Positive("forward", p.Spot),
		validate.Positive("strike", p.Strike),
		validate.NonNegative("time", p.Time),
		validate.Finite("rate", p.Rate),
		validate.Zero("dividend", p.Dividend, "black76"),
		validate.Positive("volatility", p.Volatility),
	)
}

func forwardAsSpot(p Params) Params {
	p.Dividend = p.Rate
	return p
}

func (m Black76) Price(p Params, t OptionType) (float64, error) {
	if err := validateCall(m, p, t); err != nil {
		return 0, err
	}
	v := spotPrice(forwardAsSpot(p), t)
	return v, checkFinite("black76 price", v)
}

func (m Black76) Greeks(p Params, t OptionType) (Greeks, error) {
	if err := validateCall(m, p, t); err != nil {
		return Greeks{}, err
	}
	g := spotGreeks(forwardAsSpot(p), t)
	g.Rho += g.DividendRho
	g.DividendRho = 0
	return g, checkGreeks("black76 greeks", g)
}

func (m Black76) PriceVega(p Params, t OptionType) (float64, float64, error) {
	if err := validateCall(m, p, t); err != nil {
		return 0, 0, err
	}
	v, vega := spotPriceVega(forwardAsSpot(p), t)
	return v, vega, checkFinite("black76 price", v)
}

func (Black76) ImpliedVolSeed(p Params, t OptionType, price float64) float64 {
	dr := math.Exp(-p.Rate * p.Time)
	return spotSeed(p.Spot*dr, p.Strike*dr, p.Time, price, t)
}
