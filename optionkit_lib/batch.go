package optionkit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jwaldner/optionkit/internal/broadcast"
	"github.com/jwaldner/optionkit/internal/faults"
	"github.com/jwaldner/optionkit/internal/logger"
	"github.com/jwaldner/optionkit/internal/pricing"
)

// Inputs are the batch pricing inputs. Dividend may be left unset and is then
// zero; every other field is required.
type Inputs struct {
	Spot       Stream
	Strike     Stream
	Time       Stream
	Rate       Stream
	Dividend   Stream
	Volatility Stream
}

// IVInputs are the batch implied volatility inputs. Volatility is not used.
type IVInputs struct {
	Inputs
	Price Stream
}

// Stream positions within a plan.
const (
	streamSpot = iota
	streamStrike
	streamTime
	streamRate
	streamDividend
	streamVolatility
	streamPrice = streamVolatility
)

func required(name string, s Stream) (Stream, error) {
	if !s.Defined() {
		return Stream{}, &faults.ValidationError{Field: name, Reason: "is required"}
	}
	return s.Named(name), nil
}

func (in Inputs) streams(last string, lastStream Stream) ([]Stream, error) {
	dividend := in.Dividend
	if !dividend.Defined() {
		dividend = Scalar(0)
	}
	fields := []struct {
		name string
		s    Stream
	}{
		{"spot", in.Spot},
		{"strike", in.Strike},
		{"time", in.Time},
		{"rate", in.Rate},
		{"dividend", dividend},
		{last, lastStream},
	}
	out := make([]Stream, len(fields))
	for i, f := range fields {
		s, err := required(f.name, f.s)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (in Inputs) plan() (*broadcast.Plan, error) {
	ss, err := in.streams("volatility", in.Volatility)
	if err != nil {
		return nil, err
	}
	return broadcast.New(ss...)
}

func (in IVInputs) plan() (*broadcast.Plan, error) {
	ss, err := in.streams("price", in.Price)
	if err != nil {
		return nil, err
	}
	return broadcast.New(ss...)
}

// Plan returns the output length of a pricing or Greeks batch over in, or
// the dimension mismatch that would reject it.
func Plan(in Inputs) (int, error) {
	p, err := in.plan()
	if err != nil {
		return 0, err
	}
	return p.Len(), nil
}

// PlanIV is Plan for an implied volatility batch.
func PlanIV(in IVInputs) (int, error) {
	p, err := in.plan()
	if err != nil {
		return 0, err
	}
	return p.Len(), nil
}

// params reads element i of a plan built by Inputs.plan. For IVInputs plans
// the last stream is the price and Volatility is left zero.
func params(p *broadcast.Plan, i int, withVol bool) Params {
	out := Params{
		Spot:     p.Value(streamSpot, i),
		Strike:   p.Value(streamStrike, i),
		Time:     p.Value(streamTime, i),
		Rate:     p.Value(streamRate, i),
		Dividend: p.Value(streamDividend, i),
	}
	if withVol {
		out.Volatility = p.Value(streamVolatility, i)
	}
	return out
}

// Report describes a finished batch.
type Report struct {
	Len      int
	Strategy Strategy
	// Faults lists failed elements in index order. It is only populated in
	// CollectErrors mode.
	Faults  []Fault
	Elapsed time.Duration
}

// OK reports whether every element succeeded.
func (r *Report) OK() bool { return len(r.Faults) == 0 }

// GreeksBuffers receives batch Greeks. A nil slice is skipped; a non-nil
// slice must have the batch length.
type GreeksBuffers struct {
	Delta       []float64
	Gamma       []float64
	Vega        []float64
	Theta       []float64
	Rho         []float64
	DividendRho []float64
}

// NewGreeksBuffers allocates every buffer with length n.
func NewGreeksBuffers(n int) *GreeksBuffers {
	return &GreeksBuffers{
		Delta:       make([]float64, n),
		Gamma:       make([]float64, n),
		Vega:        make([]float64, n),
		Theta:       make([]float64, n),
		Rho:         make([]float64, n),
		DividendRho: make([]float64, n),
	}
}

func (b *GreeksBuffers) fields() []struct {
	name string
	buf  []float64
} {
	return []struct {
		name string
		buf  []float64
	}{
		{"delta", b.Delta}, {"gamma", b.Gamma}, {"vega", b.Vega},
		{"theta", b.Theta}, {"rho", b.Rho}, {"dividend_rho", b.DividendRho},
	}
}

func (b *GreeksBuffers) check(n int) error {
	for _, f := range b.fields() {
		if f.buf != nil {
			if err := checkBuffer(f.name, f.buf, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *GreeksBuffers) set(i int, g Greeks) {
	put := func(buf []float64, v float64) {
		if buf != nil {
			buf[i] = v
		}
	}
	put(b.Delta, g.Delta)
	put(b.Gamma, g.Gamma)
	put(b.Vega, g.Vega)
	put(b.Theta, g.Theta)
	put(b.Rho, g.Rho)
	put(b.DividendRho, g.DividendRho)
}

func checkBuffer(name string, buf []float64, n int) error {
	if len(buf) != n {
		return &faults.ValidationError{
			Field:  name,
			Value:  float64(len(buf)),
			Reason: fmt.Sprintf("output buffer length must equal the batch length %d", n),
		}
	}
	return nil
}

var nan = math.NaN()

// run drives one batch: it selects the strategy, runs elem for every index
// and applies the error mode. elem computes and stores element i; fail is
// called to write the failure marker at i in CollectErrors mode.
func (e *Engine) run(op string, n int, elem func(i int) error, fail func(i int)) (*Report, error) {
	start := time.Now()
	strategy := e.exec.Select(n)
	report := &Report{Len: n, Strategy: strategy}
	if n == 0 {
		return report, nil
	}

	collect := e.errorMode == CollectErrors
	perSlot := make([][]Fault, strategy.Slots())

	err := e.exec.Run(context.Background(), strategy, n, func(_ context.Context, slot, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := elem(i); err != nil {
				if !collect {
					return Fault{Index: i, Err: err}
				}
				fail(i)
				perSlot[slot] = append(perSlot[slot], Fault{Index: i, Err: err})
			}
		}
		return nil
	})
	report.Elapsed = time.Since(start)
	if err != nil {
		logger.Debug.Printf("⚡ %s: %d contracts, %s, failed: %v", op, n, strategy, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report.Faults = faults.Merge(perSlot)
	logger.Debug.Printf("⚡ %s: %d contracts, %s, %.3fms, %d faults",
		op, n, strategy, report.Elapsed.Seconds()*1000, len(report.Faults))
	return report, nil
}

// PriceBatch prices every element of the broadcast of in.
func (e *Engine) PriceBatch(kind Kind, typ OptionType, in Inputs) ([]float64, *Report, error) {
	n, err := Plan(in)
	if err != nil {
		return nil, nil, err
	}
	out := make([]float64, n)
	report, err := e.PriceBatchInto(kind, typ, in, out)
	if err != nil {
		return nil, nil, err
	}
	return out, report, nil
}

// PriceBatchInto is PriceBatch writing into out, which must have the batch
// length.
func (e *Engine) PriceBatchInto(kind Kind, typ OptionType, in Inputs, out []float64) (*Report, error) {
	m, err := pricing.Lookup(kind)
	if err != nil {
		return nil, err
	}
	plan, err := in.plan()
	if err != nil {
		return nil, err
	}
	if err := checkBuffer("prices", out, plan.Len()); err != nil {
		return nil, err
	}
	return e.run("price batch", plan.Len(),
		func(i int) error {
			v, err := m.Price(params(plan, i, true), typ)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		},
		func(i int) { out[i] = nan },
	)
}

// GreeksBatch computes all Greeks for every element of the broadcast of in.
func (e *Engine) GreeksBatch(kind Kind, typ OptionType, in Inputs) (*GreeksBuffers, *Report, error) {
	n, err := Plan(in)
	if err != nil {
		return nil, nil, err
	}
	buf := NewGreeksBuffers(n)
	report, err := e.GreeksBatchInto(kind, typ, in, buf)
	if err != nil {
		return nil, nil, err
	}
	return buf, report, nil
}

// GreeksBatchInto is GreeksBatch writing into the non-nil slices of buf.
func (e *Engine) GreeksBatchInto(kind Kind, typ OptionType, in Inputs, buf *GreeksBuffers) (*Report, error) {
	m, err := pricing.Lookup(kind)
	if err != nil {
		return nil, err
	}
	plan, err := in.plan()
	if err != nil {
		return nil, err
	}
	if buf == nil {
		buf = &GreeksBuffers{}
	}
	if err := buf.check(plan.Len()); err != nil {
		return nil, err
	}
	failed := Greeks{Delta: nan, Gamma: nan, Vega: nan, Theta: nan, Rho: nan, DividendRho: nan}
	return e.run("greeks batch", plan.Len(),
		func(i int) error {
			g, err := m.Greeks(params(plan, i, true), typ)
			if err != nil {
				return err
			}
			buf.set(i, g)
			return nil
		},
		func(i int) { buf.set(i, failed) },
	)
}

// ImpliedVolBatch solves for volatility at every element of the broadcast of
// in.
func (e *Engine) ImpliedVolBatch(kind Kind, typ OptionType, in IVInputs) ([]float64, *Report, error) {
	n, err := PlanIV(in)
	if err != nil {
		return nil, nil, err
	}
	out := make([]float64, n)
	report, err := e.ImpliedVolBatchInto(kind, typ, in, out)
	if err != nil {
		return nil, nil, err
	}
	return out, report, nil
}

// ImpliedVolBatchInto is ImpliedVolBatch writing into out.
func (e *Engine) ImpliedVolBatchInto(kind Kind, typ OptionType, in IVInputs, out []float64) (*Report, error) {
	m, err := pricing.Lookup(kind)
	if err != nil {
		return nil, err
	}
	plan, err := in.plan()
	if err != nil {
		return nil, err
	}
	if err := checkBuffer("volatilities", out, plan.Len()); err != nil {
		return nil, err
	}
	return e.run("implied vol batch", plan.Len(),
		func(i int) error {
			res, err := e.solver.Solve(m, params(plan, i, false), typ, plan.Value(streamPrice, i))
			if err != nil {
				return err
			}
			out[i] = res.Volatility
			return nil
		},
		func(i int) { out[i] = nan },
	)
}
