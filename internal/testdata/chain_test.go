package testdata

import (
	"math"
	"testing"

	optionkit "github.com/jwaldner/optionkit/optionkit_lib"
)

func TestMicroPrice(t *testing.T) {
	q := Quote{Bid: 6.10, Ask: 6.30, BidSize: 180, AskSize: 140}
	if got := q.MicroPrice(); math.Abs(got-6.2125) > 1e-12 {
		t.Errorf("MicroPrice = %v, want 6.2125", got)
	}
	q.BidSize = 0
	if got := q.MicroPrice(); math.Abs(got-6.20) > 1e-12 {
		t.Errorf("MicroPrice without size = %v, want the mid", got)
	}
}

// Black-Scholes implied vols of the chain's micro-prices.
var wantIV = map[float64]float64{
	250: 0.2358, 255: 0.2209, 260: 0.20731, 265: 0.19881, 275: 0.16919, 280: 0.15462,
}

func TestChainImpliedVols(t *testing.T) {
	e := optionkit.NewEngine()
	in, quotes := AAPL.Inputs(optionkit.Put)
	if len(quotes) != 6 {
		t.Fatalf("got %d puts", len(quotes))
	}

	vols, report, err := e.ImpliedVolBatch(optionkit.BlackScholes, optionkit.Put, in)
	if err != nil {
		t.Fatal(err)
	}
	if !report.OK() {
		t.Fatalf("faults: %+v", report.Faults)
	}
	for i, q := range quotes {
		if want := wantIV[q.Strike]; math.Abs(vols[i]-want) > 1e-4 {
			t.Errorf("%s: iv %.5f, want %.5f", q.Symbol, vols[i], want)
		}
	}

	// Early exercise is worth something, so the American vols sit below.
	american, _, err := e.ImpliedVolBatch(optionkit.American, optionkit.Put, in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range american {
		if american[i] > vols[i] {
			t.Errorf("%s: american iv %.5f above european %.5f", quotes[i].Symbol, american[i], vols[i])
		}
	}
}

func TestChainCalls(t *testing.T) {
	in, quotes := AAPL.Inputs(optionkit.Call)
	vols, _, err := optionkit.NewEngine().ImpliedVolBatch(optionkit.Merton, optionkit.Call, in)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vols {
		if v < 0.1 || v > 0.3 {
			t.Errorf("%s: iv %.4f outside the plausible range", quotes[i].Symbol, v)
		}
	}
}
