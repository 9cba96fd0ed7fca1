package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jwaldner/optionkit/internal/config"
	"github.com/jwaldner/optionkit/internal/handlers"
	"github.com/jwaldner/optionkit/internal/logger"
	"github.com/jwaldner/optionkit/internal/rates"
	optionkit "github.com/jwaldner/optionkit/optionkit_lib"
)

func main() {
	cfg := config.Load()

	if err := logger.InitWithConfig(cfg.Logging.LogLevel, cfg.Logging.LogFile); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger.Always.Printf("🚀 optionkit pricing server starting - Port: %s", cfg.Port)

	if cfg.Logging.LogLevel == "verbose" {
		fmt.Printf("⚠️  VERBOSE LOGGING ENABLED - per-batch strategy and timing will be logged to %s\n", cfg.Logging.LogFile)
	}

	// Fail on bad defaults now rather than on the first request.
	if _, err := optionkit.ParseKind(cfg.DefaultModel); err != nil {
		log.Fatalf("❌ DEFAULT_MODEL: %v", err)
	}
	if _, err := optionkit.ParseOptionType(cfg.DefaultOptionType); err != nil {
		log.Fatalf("❌ DEFAULT_OPTION_TYPE: %v", err)
	}

	engine := optionkit.NewEngineFromConfig(cfg.Engine, cfg.Solver)
	info := engine.Info()
	logger.Always.Printf("🔧 EXECUTION MODE: %s (sequential < %d, parallel >= %d, chunk %d, %d workers)",
		info.Executor.Mode, info.Executor.SequentialThreshold, info.Executor.ParallelThreshold,
		info.Executor.ChunkSize, info.Executor.Workers)
	logger.Always.Printf("🔧 ERROR MODE: %s", info.ErrorMode)
	logger.Info.Printf("🧮 Solver: vol in [%g, %g], price tol %g, %d newton + %d bracket iterations",
		info.Solver.MinVolatility, info.Solver.MaxVolatility, info.Solver.PriceTolerance,
		info.Solver.MaxIterations, info.Solver.MaxBracketIterations)

	rateSource := rates.FromConfig(cfg.Rates)
	if tc, ok := rateSource.(*rates.TreasuryClient); ok {
		logger.Always.Printf("🏛️ RATE SOURCE: Treasury Bills at %s (fallback %.3f%%)", cfg.Rates.TreasuryURL, cfg.Rates.DefaultRate*100)
		// Warm the cache so the first request does not wait on the API.
		logger.Info.Printf("📈 Initial risk-free rate: %.6f", tc.RiskFreeRate(context.Background()))
	} else {
		logger.Always.Printf("🏛️ RATE SOURCE: fixed %.3f%%", cfg.Rates.DefaultRate*100)
	}

	h := handlers.NewPricingHandler(engine, cfg, rateSource)
	r := handlers.NewRouter(h)

	fmt.Printf("🌐 Server starting on http://localhost:%s\n", cfg.Port)
	logger.Always.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)

	if err := http.ListenAndServe("0.0.0.0:"+cfg.Port, r); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
