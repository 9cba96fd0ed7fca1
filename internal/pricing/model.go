// Package pricing implements the closed-form and analytic-approximation
// option models: Black-Scholes, Black-76, Merton (continuous dividend) and the
// Barone-Adesi-Whaley approximation for American exercise.
//
// Every model validates its Params before any arithmetic runs and computes the
// full Greek set from one shared set of intermediates, so that delta, gamma and
// the rest are mutually consistent.
package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/jwaldner/optionkit/internal/faults"
)

// OptionType selects the payoff.
type OptionType byte

const (
	Call OptionType = 'C'
	Put  OptionType = 'P'
)

func (t OptionType) String() string {
	switch t {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return fmt.Sprintf("OptionType(%d)", byte(t))
	}
}

// ParseOptionType accepts "call"/"put" and the single-letter forms.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "call", "calls":
		return Call, nil
	case "p", "put", "puts":
		return Put, nil
	}
	return 0, &faults.ValidationError{Field: "option_type", Reason: fmt.Sprintf("unknown option type %q", s)}
}

// Params is one set of pricing inputs. For Black76, Spot holds the forward.
type Params struct {
	Spot       float64
	Strike     float64
	Time       float64 // years to expiry
	Rate       float64 // continuously compounded
	Dividend   float64 // continuous yield, Merton and American only
	Volatility float64
}

// WithVolatility returns a copy of p with Volatility replaced.
func (p Params) WithVolatility(v float64) Params {
	p.Volatility = v
	return p
}

// Greeks is the sensitivity set produced for one Params.
// Vega is per 1.00 of volatility, Theta per year, Rho per 1.00 of rate and
// DividendRho per 1.00 of dividend yield.
type Greeks struct {
	Delta       float64
	Gamma       float64
	Vega        float64
	Theta       float64
	Rho         float64
	DividendRho float64
}

// Kind identifies a model.
type Kind int

const (
	KindBlackScholes Kind = iota
	KindBlack76
	KindMerton
	KindAmerican
)

var kindNames = map[Kind]string{
	KindBlackScholes: "black_scholes",
	KindBlack76:      "black76",
	KindMerton:       "merton",
	KindAmerican:     "american",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a model name to its Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)) {
	case "blackscholes", "bs", "":
		return KindBlackScholes, nil
	case "black76", "black", "forward":
		return KindBlack76, nil
	case "merton", "bsm", "blackscholesmerton", "dividend":
		return KindMerton, nil
	case "american", "baw", "baroneadesiwhaley":
		return KindAmerican, nil
	}
	return 0, &faults.ValidationError{Field: "model", Reason: fmt.Sprintf("unknown pricing model %q", s)}
}

// Model is implemented by each pricing model.
type Model interface {
	Kind() Kind
	// Validate checks p against the model's domain.
	Validate(p Params) error
	Price(p Params, t OptionType) (float64, error)
	Greeks(p Params, t OptionType) (Greeks, error)
	// PriceVega returns the price and dPrice/dVolatility from the same
	// intermediates. It is the inner step of the volatility solver.
	PriceVega(p Params, t OptionType) (price, vega float64, err error)
	// ImpliedVolSeed returns a closed-form starting point for inverting price.
	ImpliedVolSeed(p Params, t OptionType, price float64) float64
}

var models = map[Kind]Model{
	KindBlackScholes: BlackScholes{},
	KindBlack76:      Black76{},
	KindMerton:       Merton{},
	KindAmerican:     American{},
}

// Lookup returns the Model for k.
func Lookup(k Kind) (Model, error) {
	m, ok := models[k]
	if !ok {
		return nil, &faults.ValidationError{Field: "model", Reason: fmt.Sprintf("unknown pricing model %v", k)}
	}
	return m, nil
}

func checkType(t OptionType) error {
	if t != Call && t != Put {
		return &faults.ValidationError{Field: "option_type", Reason: fmt.Sprintf("unknown option type %v", t)}
	}
	return nil
}

func checkFinite(op string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &faults.NumericalError{Op: op, Value: v}
	}
	return nil
}

func checkGreeks(op string, g Greeks) error {
	for _, v := range [...]float64{g.Delta, g.Gamma, g.Vega, g.Theta, g.Rho, g.DividendRho} {
		if err := checkFinite(op, v); err != nil {
			return err
		}
	}
	return nil
}
