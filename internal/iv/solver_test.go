package iv

import (
	"errors"
	"math"
	"testing"

	"github.com/jwaldner/optionkit/internal/faults"
	"github.com/jwaldner/optionkit/internal/pricing"
)

func TestRoundTrip(t *testing.T) {
	s := New(Config{})
	models := []pricing.Model{pricing.BlackScholes{}, pricing.Black76{}}
	vols := []float64{0.01, 0.05, 0.1, 0.2, 0.35, 0.5, 0.8, 1.2, 2, 3}
	strikes := []float64{50, 70, 90, 100, 110, 130, 160, 200}

	checked := 0
	for _, m := range models {
		for _, typ := range []pricing.OptionType{pricing.Call, pricing.Put} {
			for _, vol := range vols {
				for _, k := range strikes {
					p := pricing.Params{Spot: 100, Strike: k, Time: 1, Rate: 0.05, Volatility: vol}
					g, err := m.Greeks(p, typ)
					if err != nil {
						t.Fatal(err)
					}
					// Below this vega the price carries no usable information about vol.
					if g.Vega < 1e-3 {
						continue
					}
					price, _ := m.Price(p, typ)
					res, err := s.Solve(m, p, typ, price)
					if err != nil {
						t.Errorf("%v %v vol=%g K=%g: %v", m.Kind(), typ, vol, k, err)
						continue
					}
					if math.Abs(res.Volatility-vol) > 1e-6 {
						t.Errorf("%v %v vol=%g K=%g: implied %g (%d iterations, %v)",
							m.Kind(), typ, vol, k, res.Volatility, res.Iterations, res.Phase)
					}
					checked++
				}
			}
		}
	}
	t.Logf("round-tripped %d cases", checked)
}

func TestRoundTripMertonAndAmerican(t *testing.T) {
	s := New(DefaultConfig())
	for _, m := range []pricing.Model{pricing.Merton{}, pricing.American{}} {
		for _, vol := range []float64{0.15, 0.3, 0.6} {
			for _, k := range []float64{80, 100, 120} {
				p := pricing.Params{Spot: 100, Strike: k, Time: 0.5, Rate: 0.04, Dividend: 0.02, Volatility: vol}
				price, err := m.Price(p, pricing.Put)
				if err != nil {
					t.Fatal(err)
				}
				res, err := s.Solve(m, p, pricing.Put, price)
				if err != nil {
					t.Fatalf("%v vol=%g K=%g: %v", m.Kind(), vol, k, err)
				}
				if math.Abs(res.Volatility-vol) > 1e-5 {
					t.Errorf("%v vol=%g K=%g: implied %g", m.Kind(), vol, k, res.Volatility)
				}
			}
		}
	}
}

func TestRoundTripDividendModelsWide(t *testing.T) {
	s := New(DefaultConfig())
	vols := []float64{0.01, 0.05, 0.1, 0.2, 0.35, 0.5, 0.8, 1.2, 2, 3}
	strikes := []float64{50, 70, 90, 100, 110, 130, 160, 200}

	checked := 0
	for _, m := range []pricing.Model{pricing.Merton{}, pricing.American{}} {
		// American vega is a finite difference.
		tol := 1e-6
		if m.Kind() == pricing.KindAmerican {
			tol = 1e-5
		}
		for _, typ := range []pricing.OptionType{pricing.Call, pricing.Put} {
			for _, T := range []float64{0.25, 1, 3} {
				for _, vol := range vols {
					for _, k := range strikes {
						p := pricing.Params{Spot: 100, Strike: k, Time: T, Rate: 0.05, Dividend: 0.03, Volatility: vol}
						g, err := m.Greeks(p, typ)
						if err != nil {
							t.Fatalf("%v %v T=%g vol=%g K=%g: %v", m.Kind(), typ, T, vol, k, err)
						}
						// Exercised American contracts are flat in vol.
						if g.Vega < 1e-3 {
							continue
						}
						price, _ := m.Price(p, typ)
						res, err := s.Solve(m, p, typ, price)
						if err != nil {
							t.Errorf("%v %v T=%g vol=%g K=%g: %v", m.Kind(), typ, T, vol, k, err)
							continue
						}
						if math.Abs(res.Volatility-vol) > tol {
							t.Errorf("%v %v T=%g vol=%g K=%g: implied %g (%d iterations, %v)",
								m.Kind(), typ, T, vol, k, res.Volatility, res.Iterations, res.Phase)
						}
						checked++
					}
				}
			}
		}
	}
	t.Logf("round-tripped %d cases", checked)
}

func TestAmericanPutEndpointsPrice(t *testing.T) {
	// Both ends of the admissible vol range must price a plain contract.
	s := New(DefaultConfig())
	p := pricing.Params{Spot: 100, Strike: 100, Time: 0.5, Rate: 0.04, Dividend: 0.02, Volatility: 0.3}
	for _, vol := range []float64{DefaultMinVolatility, DefaultMaxVolatility} {
		if _, _, err := (pricing.American{}).PriceVega(p.WithVolatility(vol), pricing.Put); err != nil {
			t.Fatalf("vol=%g: %v", vol, err)
		}
	}
	price, _ := pricing.American{}.Price(p, pricing.Put)
	res, err := s.Solve(pricing.American{}, p, pricing.Put, price)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Volatility-0.3) > 1e-6 {
		t.Errorf("implied %g, want 0.3", res.Volatility)
	}
}

func TestSolveIgnoresInputVolatility(t *testing.T) {
	s := New(Config{})
	p := pricing.Params{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Volatility: 0.2}
	price, _ := pricing.BlackScholes{}.Price(p, pricing.Call)

	// The concrete call price from the reference scenario.
	res, err := s.Solve(pricing.BlackScholes{}, p.WithVolatility(0), pricing.Call, price)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Volatility-0.2) > 1e-9 {
		t.Errorf("implied %g, want 0.2", res.Volatility)
	}
	if res.Phase != PhaseNewton {
		t.Errorf("phase = %v, want newton", res.Phase)
	}
	if res.Iterations > 10 {
		t.Errorf("took %d iterations", res.Iterations)
	}
}

func TestBoundsError(t *testing.T) {
	s := New(Config{})
	p := pricing.Params{Spot: 100, Strike: 100, Time: 1, Rate: 0.05}
	above := []float64{150, 100.5}
	for _, target := range above {
		_, err := s.Solve(pricing.BlackScholes{}, p, pricing.Call, target)
		if !errors.Is(err, faults.ErrBounds) {
			t.Errorf("target %g: got %v, want bounds error", target, err)
		}
	}

	// Below the discounted intrinsic value.
	p.Spot = 120
	_, err := s.Solve(pricing.BlackScholes{}, p, pricing.Call, 5)
	var be *faults.BoundsError
	if !errors.As(err, &be) {
		t.Fatalf("got %v, want *BoundsError", err)
	}
	if be.Low != DefaultMinVolatility || be.High != DefaultMaxVolatility || be.PriceLow <= 5 {
		t.Errorf("bounds error payload %+v", be)
	}
}

func TestValidation(t *testing.T) {
	s := New(Config{})
	p := pricing.Params{Spot: 100, Strike: 100, Time: 1, Rate: 0.05}
	tests := []struct {
		name   string
		p      pricing.Params
		target float64
	}{
		{"negative price", p, -1},
		{"nan price", p, math.NaN()},
		{"inf price", p, math.Inf(1)},
		{"zero time", pricing.Params{Spot: 100, Strike: 100, Rate: 0.05}, 5},
		{"bad strike", pricing.Params{Spot: 100, Strike: 0, Time: 1}, 5},
	}
	for _, tt := range tests {
		if _, err := s.Solve(pricing.BlackScholes{}, tt.p, pricing.Call, tt.target); !errors.Is(err, faults.ErrValidation) {
			t.Errorf("%s: got %v, want validation error", tt.name, err)
		}
	}
}

func TestFallsBackToBisection(t *testing.T) {
	p := pricing.Params{Spot: 100, Strike: 110, Time: 0.5, Rate: 0.01, Volatility: 0.45}
	price, _ := pricing.BlackScholes{}.Price(p, pricing.Call)

	configs := map[string]Config{
		"vega floor":    {VegaFloor: 1e6},
		"iteration cap": {MaxIterations: 1},
	}
	for name, cfg := range configs {
		res, err := New(cfg).Solve(pricing.BlackScholes{}, p, pricing.Call, price)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Phase != PhaseBracket {
			t.Errorf("%s: phase = %v, want bracket", name, res.Phase)
		}
		if math.Abs(res.Volatility-0.45) > 1e-8 {
			t.Errorf("%s: implied %g, want 0.45", name, res.Volatility)
		}
	}
}

func TestConvergenceError(t *testing.T) {
	s := New(Config{VegaFloor: 1e6, MaxBracketIterations: 1})
	p := pricing.Params{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Volatility: 0.2}
	price, _ := pricing.BlackScholes{}.Price(p, pricing.Call)

	_, err := s.Solve(pricing.BlackScholes{}, p, pricing.Call, price)
	var ce *faults.ConvergenceError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want *ConvergenceError", err)
	}
	if ce.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", ce.Iterations)
	}
}

func TestStateTighten(t *testing.T) {
	st := State{Volatility: 0.3, Residual: 1, Lo: 0.1, Hi: 1}
	st.tighten()
	if st.Hi != 0.3 || st.Lo != 0.1 {
		t.Errorf("positive residual: bracket [%g, %g]", st.Lo, st.Hi)
	}
	st.Volatility, st.Residual = 0.2, -1
	st.tighten()
	if st.Lo != 0.2 || st.Hi != 0.3 {
		t.Errorf("negative residual: bracket [%g, %g]", st.Lo, st.Hi)
	}
}

func TestConfigDefaults(t *testing.T) {
	got := New(Config{MaxIterations: 7}).Config()
	want := DefaultConfig()
	want.MaxIterations = 7
	if got != want {
		t.Errorf("effective config %+v, want %+v", got, want)
	}
}

func BenchmarkSolve(b *testing.B) {
	s := New(Config{})
	p := pricing.Params{Spot: 100, Strike: 105, Time: 0.5, Rate: 0.03, Volatility: 0.27}
	price, _ := pricing.BlackScholes{}.Price(p, pricing.Put)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Solve(pricing.BlackScholes{}, p, pricing.Put, price); err != nil {
			b.Fatal(err)
		}
	}
}
