package pricing

import (
	"math"

	"github.com/jwaldner/optionkit/internal/validate"
)

// BlackScholes is the no-dividend spot model.
type BlackScholes struct{}

func (BlackScholes) Kind() Kind { return KindBlackScholes }

func (BlackScholes) Validate(p Params) error {
	return validateSpot(p, func(q float64) error {
		return validate.Zero("dividend", q, "black-scholes")
	})
}

func (m BlackScholes) Price(p Params, t OptionType) (float64, error) {
	if err := validateCall(m, p, t); err != nil {
		return 0, err
	}
	v := spotPrice(p, t)
	return v, checkFinite("black-scholes price", v)
}

func (m BlackScholes) Greeks(p Params, t OptionType) (Greeks, error) {
	if err := validateCall(m, p, t); err != nil {
		return Greeks{}, err
	}
	g := spotGreeks(p, t)
	return g, checkGreeks("black-scholes greeks", g)
}

func (m BlackScholes) PriceVega(p Params, t OptionType) (float64, float64, error) {
	if err := validateCall(m, p, t); err != nil {
		return 0, 0, err
	}
	v, vega := spotPriceVega(p, t)
	return v, vega, checkFinite("black-scholes price", v)
}

func (BlackScholes) ImpliedVolSeed(p Params, t OptionType, price float64) float64 {
	return spotSeed(p.Spot, p.Strike*math.Exp(-p.Rate*p.Time), p.Time, price, t)
}

// Merton is the spot model with a continuous dividend yield.
type Merton struct{}

func (Merton) Kind() Kind { return KindMerton }

func (Merton) Validate(p Params) error {
	return validateSpot(p, func(q float64) error {
		return validate.DividendYield("dividend", q)
	})
}

func (m Merton) Price(p Params, t OptionType) (float64, error) {
	if err := validateCall(m, p, t); err != nil {
		return 0, err
	}
	v := spotPrice(p, t)
	return v, checkFinite("merton price", v)
}

func (m Merton) Greeks(p Params, t OptionType) (Greeks, error) {
	if err := validateCall(m, p, t); err != nil {
		return Greeks{}, err
	}
	g := spotGreeks(p, t)
	return g, checkGreeks("merton greeks", g)
}

func (m Merton) PriceVega(p Params, t OptionType) (float64, float64, error) {
	if err := validateCall(m, p, t); err != nil {
		return 0, 0, err
	}
	v, vega := spotPriceVega(p, t)
	return v, vega, checkFinite("merton price", v)
}

func (Merton) ImpliedVolSeed(p Params, t OptionType, price float64) float64 {
	return spotSeed(p.Spot*math.Exp(-p.Dividend*p.Time), p.Strike*math.Exp(-p.Rate*p.Time), p.Time, price, t)
}

// validateSpot runs the checks shared by every model; dividend carries the
// model-specific rule for the yield.
func validateSpot(p Params, dividend func(float64) error) error {
	return validate.First(
		validate.Positive("spot", p.Spot),
		validate.Positive("strike", p.Strike),
		validate.NonNegative("time", p.Time),
		validate.Finite("rate", p.Rate),
		dividend(p.Dividend),
		validate.Positive("volatility", p.Volatility),
	)
}

func validateCall(m Model, p Params, t OptionType) error {
	if err := checkType(t); err != nil {
		return err
	}
	return m.Validate(p)
}
