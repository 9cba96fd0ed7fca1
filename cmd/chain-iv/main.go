package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/jwaldner/optionkit/internal/executor"
	"github.com/jwaldner/optionkit/internal/models"
	"github.com/jwaldner/optionkit/internal/testdata"
	optionkit "github.com/jwaldner/optionkit/optionkit_lib"
)

func main() {
	model := flag.String("model", "american", "pricing model")
	repeat := flag.Int("repeat", 20000, "copies of the chain in the timing run")
	flag.Parse()

	kind, err := optionkit.ParseKind(*model)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	chain := testdata.AAPL
	fmt.Printf("🔬 Implied volatility for %s, %s model\n", chain.Symbol, kind)
	fmt.Printf("💰 Spot: %s, Expiration: %s (%.4f years), Rate: %s\n",
		models.Currency(chain.Spot).Display, chain.Expiration, chain.Time, models.Percentage(chain.Rate).Display)
	fmt.Println()

	engine := optionkit.NewEngine(optionkit.WithErrorMode(optionkit.CollectErrors))
	for _, typ := range []optionkit.OptionType{optionkit.Put, optionkit.Call} {
		printChain(engine, kind, typ, chain)
	}

	timeStrategies(kind, chain, *repeat)
}

func printChain(engine *optionkit.Engine, kind optionkit.Kind, typ optionkit.OptionType, chain testdata.Chain) {
	in, quotes := chain.Inputs(typ)
	vols, report, err := engine.ImpliedVolBatch(kind, typ, in)
	if err != nil {
		fmt.Printf("❌ %s: %v\n\n", typ, err)
		return
	}

	fmt.Printf("📈 %ss (%d contracts)\n", typ, len(quotes))
	fmt.Printf("   %-22s %8s %8s %8s %8s\n", "Symbol", "Strike", "Price", "IV", "Delta")
	for i, q := range quotes {
		delta := math.NaN()
		if !math.IsNaN(vols[i]) {
			g, err := engine.Greeks(kind, typ, optionkit.Params{
				Spot: chain.Spot, Strike: q.Strike, Time: chain.Time, Rate: chain.Rate, Volatility: vols[i],
			})
			if err == nil {
				delta = g.Delta
			}
		}
		fmt.Printf("   %-22s %8s %8s %8s %8s\n", q.Symbol,
			models.Currency(q.Strike).Display,
			models.Currency(q.MicroPrice()).Display,
			models.Percentage(vols[i]).Display,
			models.Number(delta, 3).Display)
	}
	for _, f := range report.Faults {
		fmt.Printf("   ⚠️  %s: %v\n", quotes[f.Index].Symbol, f.Err)
	}
	fmt.Println()
}

// timeStrategies solves the chain repeated n times under each forced strategy
// and checks they agree.
func timeStrategies(kind optionkit.Kind, chain testdata.Chain, n int) {
	in, quotes := chain.Inputs(optionkit.Put)
	strikes := make([]float64, 0, n*len(quotes))
	prices := make([]float64, 0, n*len(quotes))
	for i := 0; i < n; i++ {
		for _, q := range quotes {
			strikes = append(strikes, q.Strike)
			prices = append(prices, q.MicroPrice())
		}
	}
	in.Strike = optionkit.Array(strikes)
	in.Price = optionkit.Array(prices)

	fmt.Printf("🧪 Timing %d put solves\n", len(prices))
	var base []float64
	for _, mode := range []executor.Mode{executor.ModeSequential, executor.ModeChunked, executor.ModeParallel, executor.ModeAuto} {
		engine := optionkit.NewEngine(optionkit.WithExecutor(optionkit.ExecutorConfig{Mode: mode}))
		start := time.Now()
		vols, report, err := engine.ImpliedVolBatch(kind, optionkit.Put, in)
		if err != nil {
			fmt.Printf("   ❌ %s: %v\n", mode, err)
			continue
		}
		match := "✅"
		if base == nil {
			base = vols
		} else {
			for i := range vols {
				if vols[i] != base[i] {
					match = fmt.Sprintf("❌ differs at %d", i)
					break
				}
			}
		}
		fmt.Printf("   %-10s %-22s %10.2fms %s\n", mode, report.Strategy, time.Since(start).Seconds()*1000, match)
	}
}
