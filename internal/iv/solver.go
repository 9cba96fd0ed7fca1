// Package iv inverts a pricing model for volatility.
//
// The solver runs Newton's method on vega from a closed-form seed and keeps a
// bracket [Lo, Hi] that every evaluated point tightens, since price is
// increasing in volatility. When vega is too small for a Newton step to mean
// anything, or the iteration cap is reached, it falls back to bisection of
// that bracket. Targets outside the prices reachable over the admissible
// range are rejected up front with a BoundsError.
package iv

import (
	"fmt"
	"math"

	"github.com/jwaldner/optionkit/internal/faults"
	"github.com/jwaldner/optionkit/internal/pricing"
)

// Default solver settings.
const (
	DefaultMinVolatility        = 1e-3
	DefaultMaxVolatility        = 5.0
	DefaultPriceTolerance       = 1e-10
	DefaultVolTolerance         = 1e-10
	DefaultVegaFloor            = 1e-8
	DefaultMaxIterations        = 50
	DefaultMaxBracketIterations = 200
)

// Config holds the admissible volatility range and convergence settings.
// Zero fields take the package defaults.
type Config struct {
	MinVolatility        float64
	MaxVolatility        float64
	PriceTolerance       float64
	VolTolerance         float64
	VegaFloor            float64
	MaxIterations        int
	MaxBracketIterations int
}

// DefaultConfig returns the package defaults.
func DefaultConfig() Config {
	return Config{
		MinVolatility:        DefaultMinVolatility,
		MaxVolatility:        DefaultMaxVolatility,
		PriceTolerance:       DefaultPriceTolerance,
		VolTolerance:         DefaultVolTolerance,
		VegaFloor:            DefaultVegaFloor,
		MaxIterations:        DefaultMaxIterations,
		MaxBracketIterations: DefaultMaxBracketIterations,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinVolatility <= 0 {
		c.MinVolatility = d.MinVolatility
	}
	if c.MaxVolatility <= c.MinVolatility {
		c.MaxVolatility = math.Max(d.MaxVolatility, 2*c.MinVolatility)
	}
	if c.PriceTolerance <= 0 {
		c.PriceTolerance = d.PriceTolerance
	}
	if c.VolTolerance <= 0 {
		c.VolTolerance = d.VolTolerance
	}
	if c.VegaFloor <= 0 {
		c.VegaFloor = d.VegaFloor
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MaxBracketIterations <= 0 {
		c.MaxBracketIterations = d.MaxBracketIterations
	}
	return c
}

// Phase is the stage the solver is in.
type Phase int

const (
	PhaseNewton Phase = iota
	PhaseBracket
)

func (p Phase) String() string {
	if p == PhaseBracket {
		return "bracket"
	}
	return "newton"
}

// State is the solver's working state. It is a fixed-size value; a solve
// allocates nothing.
type State struct {
	Iteration  int
	Volatility float64
	Residual   float64 // model price minus target at Volatility
	Lo, Hi     float64
	Phase      Phase
}

// tighten narrows the bracket around the root using the sign of the residual.
func (s *State) tighten() {
	if s.Residual > 0 {
		s.Hi = math.Min(s.Hi, s.Volatility)
	} else {
		s.Lo = math.Max(s.Lo, s.Volatility)
	}
}

// Result is a converged solve.
type Result struct {
	Volatility float64
	Iterations int
	Residual   float64
	Phase      Phase
}

// Solver is immutable and safe for concurrent use.
type Solver struct {
	cfg Config
}

// New returns a Solver; zero fields of cfg take the defaults.
func New(cfg Config) *Solver {
	return &Solver{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (s *Solver) Config() Config { return s.cfg }

// Solve finds the volatility at which m prices p as target. p.Volatility is
// ignored.
func (s *Solver) Solve(m pricing.Model, p pricing.Params, t pricing.OptionType, target float64) (Result, error) {
	cfg := s.cfg
	if math.IsNaN(target) || math.IsInf(target, 0) || target < 0 {
		return Result{}, faults.Invalid("price", target, "must be a finite non-negative price")
	}
	if err := m.Validate(p.WithVolatility(cfg.MinVolatility)); err != nil {
		return Result{}, err
	}
	if p.Time <= pricing.TimeFloor {
		return Result{}, faults.Invalid("time", p.Time, "must be positive to imply volatility")
	}

	eval := func(vol float64) (float64, float64, error) {
		return m.PriceVega(p.WithVolatility(vol), t)
	}

	priceLo, _, err := eval(cfg.MinVolatility)
	if err != nil {
		return Result{}, err
	}
	priceHi, _, err := eval(cfg.MaxVolatility)
	if err != nil {
		return Result{}, err
	}
	if target < priceLo-cfg.PriceTolerance || target > priceHi+cfg.PriceTolerance {
		return Result{}, &faults.BoundsError{
			Target:    target,
			Low:       cfg.MinVolatility,
			High:      cfg.MaxVolatility,
			PriceLow:  priceLo,
			PriceHigh: priceHi,
		}
	}

	st := State{
		Volatility: clamp(m.ImpliedVolSeed(p, t, target), cfg.MinVolatility, cfg.MaxVolatility),
		Lo:         cfg.MinVolatility,
		Hi:         cfg.MaxVolatility,
		Phase:      PhaseNewton,
	}

	for st.Iteration < cfg.MaxIterations {
		st.Iteration++
		price, vega, err := eval(st.Volatility)
		if err != nil {
			return Result{}, err
		}
		st.Residual = price - target
		if math.Abs(st.Residual) < cfg.PriceTolerance {
			return finish(st, cfg)
		}
		st.tighten()
		if !(vega >= cfg.VegaFloor) {
			break
		}

		step := st.Residual / vega
		next := st.Volatility - step
		if next <= st.Lo || next >= st.Hi {
			// Outside the bracket: not a true Newton step, so the step
			// size says nothing about convergence.
			st.Volatility = 0.5 * (st.Lo + st.Hi)
			continue
		}
		st.Volatility = next
		if math.Abs(step) < cfg.VolTolerance {
			return finish(st, cfg)
		}
	}

	return bisect(st, cfg, eval, target)
}

// bisect halves the bracket until the price or the bracket width meets
// tolerance.
func bisect(st State, cfg Config, eval func(float64) (float64, float64, error), target float64) (Result, error) {
	st.Phase = PhaseBracket
	for i := 0; i < cfg.MaxBracketIterations; i++ {
		st.Iteration++
		st.Volatility = 0.5 * (st.Lo + st.Hi)
		price, _, err := eval(st.Volatility)
		if err != nil {
			return Result{}, err
		}
		st.Residual = price - target
		if math.Abs(st.Residual) < cfg.PriceTolerance || st.Hi-st.Lo < cfg.VolTolerance {
			return finish(st, cfg)
		}
		st.tighten()
	}
	return Result{}, &faults.ConvergenceError{
		Iterations: st.Iteration,
		Volatility: st.Volatility,
		Residual:   st.Residual,
	}
}

func finish(st State, cfg Config) (Result, error) {
	v := st.Volatility
	if math.IsNaN(v) || math.IsInf(v, 0) || v < cfg.MinVolatility || v > cfg.MaxVolatility {
		return Result{}, &faults.NumericalError{Op: fmt.Sprintf("implied volatility (%s)", st.Phase), Value: v}
	}
	return Result{
		Volatility: v,
		Iterations: st.Iteration,
		Residual:   st.Residual,
		Phase:      st.Phase,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0.5 * (lo + hi)
	}
	return math.Min(math.Max(v, lo), hi)
}
