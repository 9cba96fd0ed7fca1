// Package optionkit prices European and American options, computes their
// Greeks and inverts prices for implied volatility, one contract at a time or
// over broadcast batches.
//
// Batch inputs are scalars or arrays; arrays share one length and scalars
// repeat across it. The engine picks a sequential, chunked or parallel run
// from the batch length and writes results straight into caller buffers.
package optionkit

import (
	"strings"

	"github.com/jwaldner/optionkit/internal/broadcast"
	"github.com/jwaldner/optionkit/internal/config"
	"github.com/jwaldner/optionkit/internal/executor"
	"github.com/jwaldner/optionkit/internal/faults"
	"github.com/jwaldner/optionkit/internal/iv"
	"github.com/jwaldner/optionkit/internal/pricing"
)

type (
	Params     = pricing.Params
	Greeks     = pricing.Greeks
	OptionType = pricing.OptionType
	Kind       = pricing.Kind

	Stream   = broadcast.Stream
	Strategy = executor.Strategy
	Fault    = faults.Fault

	ExecutorConfig = executor.Config
	SolverConfig   = iv.Config
	SolveResult    = iv.Result
)

const (
	Call = pricing.Call
	Put  = pricing.Put

	BlackScholes = pricing.KindBlackScholes
	Black76      = pricing.KindBlack76
	Merton       = pricing.KindMerton
	American     = pricing.KindAmerican
)

// Error sentinels, matched with errors.Is.
var (
	ErrValidation  = faults.ErrValidation
	ErrConvergence = faults.ErrConvergence
	ErrBounds      = faults.ErrBounds
	ErrNumerical   = faults.ErrNumerical
)

// ParseKind maps a model name such as "black_scholes", "black76", "merton"
// or "american" to its Kind.
func ParseKind(s string) (Kind, error) { return pricing.ParseKind(s) }

// ParseOptionType accepts "call", "put" and their single-letter forms.
func ParseOptionType(s string) (OptionType, error) { return pricing.ParseOptionType(s) }

// Scalar is a batch input that repeats v.
func Scalar(v float64) Stream { return broadcast.Scalar("", v) }

// Array is a batch input over vs.
func Array(vs []float64) Stream { return broadcast.Array("", vs) }

// ErrorMode decides what a batch does with a failing element.
type ErrorMode int

const (
	// FailFast stops at the first failing element and returns its error.
	FailFast ErrorMode = iota
	// CollectErrors writes NaN for failing elements, records a Fault for each
	// and carries on.
	CollectErrors
)

func (m ErrorMode) String() string {
	if m == CollectErrors {
		return "collect"
	}
	return "fail_fast"
}

// ParseErrorMode accepts "collect" (or "collect_errors") and "fail_fast".
// Anything else is fail-fast.
func ParseErrorMode(s string) ErrorMode {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "collect", "collect_errors":
		return CollectErrors
	}
	return FailFast
}

// Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	exec      *executor.Executor
	solver    *iv.Solver
	errorMode ErrorMode
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	exec      ExecutorConfig
	solver    SolverConfig
	errorMode ErrorMode
}

// WithExecutor sets the batch strategy thresholds.
func WithExecutor(c ExecutorConfig) Option {
	return func(o *engineOptions) { o.exec = c }
}

// WithSolver sets the implied volatility range and tolerances.
func WithSolver(c SolverConfig) Option {
	return func(o *engineOptions) { o.solver = c }
}

// WithErrorMode sets how batches treat failing elements.
func WithErrorMode(m ErrorMode) Option {
	return func(o *engineOptions) { o.errorMode = m }
}

// NewEngine returns an Engine with defaults overridden by opts.
func NewEngine(opts ...Option) *Engine {
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		exec:      executor.New(o.exec),
		solver:    iv.New(o.solver),
		errorMode: o.errorMode,
	}
}

// NewEngineFromConfig builds an Engine from the loaded configuration.
func NewEngineFromConfig(ec config.EngineConfig, sc config.SolverConfig) *Engine {
	return NewEngine(
		WithExecutor(ExecutorConfig{
			SequentialThreshold: ec.SequentialThreshold,
			ParallelThreshold:   ec.ParallelThreshold,
			ChunkSize:           ec.ChunkSize,
			Workers:             ec.Workers,
			Mode:                executor.ParseMode(ec.ExecutionMode),
		}),
		WithSolver(SolverConfig{
			MinVolatility:        sc.MinVolatility,
			MaxVolatility:        sc.MaxVolatility,
			PriceTolerance:       sc.PriceTolerance,
			VolTolerance:         sc.VolTolerance,
			VegaFloor:            sc.VegaFloor,
			MaxIterations:        sc.MaxIterations,
			MaxBracketIterations: sc.MaxBracketIterations,
		}),
		WithErrorMode(ParseErrorMode(ec.ErrorMode)),
	)
}

// ErrorMode returns the engine's batch error mode.
func (e *Engine) ErrorMode() ErrorMode { return e.errorMode }

// InMode returns an Engine sharing e's configuration with error mode m.
func (e *Engine) InMode(m ErrorMode) *Engine {
	if m == e.errorMode {
		return e
	}
	c := *e
	c.errorMode = m
	return &c
}

// Strategy returns the strategy a batch of n elements would run with.
func (e *Engine) Strategy(n int) Strategy { return e.exec.Select(n) }

// Price returns the price of one contract.
func (e *Engine) Price(kind Kind, typ OptionType, p Params) (float64, error) {
	m, err := pricing.Lookup(kind)
	if err != nil {
		return 0, err
	}
	return m.Price(p, typ)
}

// Greeks returns the full Greek set of one contract.
func (e *Engine) Greeks(kind Kind, typ OptionType, p Params) (Greeks, error) {
	m, err := pricing.Lookup(kind)
	if err != nil {
		return Greeks{}, err
	}
	return m.Greeks(p, typ)
}

// ImpliedVolatility returns the volatility at which the model prices p at
// price. p.Volatility is ignored.
func (e *Engine) ImpliedVolatility(kind Kind, typ OptionType, p Params, price float64) (float64, error) {
	res, err := e.SolveImpliedVolatility(kind, typ, p, price)
	if err != nil {
		return 0, err
	}
	return res.Volatility, nil
}

// SolveImpliedVolatility is ImpliedVolatility with the solver's iteration
// count, final residual and phase.
func (e *Engine) SolveImpliedVolatility(kind Kind, typ OptionType, p Params, price float64) (SolveResult, error) {
	m, err := pricing.Lookup(kind)
	if err != nil {
		return SolveResult{}, err
	}
	return e.solver.Solve(m, p, typ, price)
}

// Info describes the engine configuration.
type Info struct {
	Models    []string       `json:"models"`
	ErrorMode string         `json:"error_mode"`
	Executor  ExecutorConfig `json:"executor"`
	Solver    SolverConfig   `json:"solver"`
}

// Info returns the effective configuration.
func (e *Engine) Info() Info {
	return Info{
		Models: []string{
			BlackScholes.String(), Black76.String(), Merton.String(), American.String(),
		},
		ErrorMode: e.errorMode.String(),
		Executor:  e.exec.Config(),
		Solver:    e.solver.Config(),
	}
}
