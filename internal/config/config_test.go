package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	os.Unsetenv("ENGINE_EXECUTION_MODE")
	os.Unsetenv("ENGINE_ERROR_MODE")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg := Load()

	if cfg.Engine.ExecutionMode != "auto" {
		t.Errorf("Expected execution mode auto by default, got %q", cfg.Engine.ExecutionMode)
	}
	if cfg.Engine.ErrorMode != "fail_fast" {
		t.Errorf("Expected error mode fail_fast by default, got %q", cfg.Engine.ErrorMode)
	}
	if cfg.Engine.SequentialThreshold != 0 || cfg.Solver.PriceTolerance != 0 {
		t.Errorf("Expected zero thresholds to defer to package defaults, got %+v %+v", cfg.Engine, cfg.Solver)
	}
	if !cfg.Logging.LogRequests {
		t.Errorf("Expected request logging on by default")
	}
}

func TestEnvOverride(t *testing.T) {
	os.Setenv("ENGINE_EXECUTION_MODE", "parallel")
	defer os.Unsetenv("ENGINE_EXECUTION_MODE")
	t.Setenv("ENGINE_CHUNK_SIZE", "128")
	t.Setenv("SOLVER_PRICE_TOLERANCE", "1e-8")
	t.Setenv("SOLVER_MAX_ITERATIONS", "not-a-number")
	t.Setenv("LOG_REQUESTS", "false")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg := Load()

	if cfg.Engine.ExecutionMode != "parallel" {
		t.Errorf("Expected execution mode parallel from env, got %q", cfg.Engine.ExecutionMode)
	}
	if cfg.Engine.ChunkSize != 128 {
		t.Errorf("Expected chunk size 128, got %d", cfg.Engine.ChunkSize)
	}
	if cfg.Solver.PriceTolerance != 1e-8 {
		t.Errorf("Expected price tolerance 1e-8, got %g", cfg.Solver.PriceTolerance)
	}
	if cfg.Solver.MaxIterations != 0 {
		t.Errorf("Expected unparseable value to fall back to default, got %d", cfg.Solver.MaxIterations)
	}
	if cfg.Logging.LogRequests {
		t.Errorf("Expected LOG_REQUESTS=false to disable request logging")
	}
}

func TestYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "9090"
  default_model: merton
logging:
  log_level: debug
  log_requests: false
engine:
  execution_mode: chunked
  parallel_threshold: 50000
  error_mode: collect
solver:
  max_volatility: 3.5
  max_iterations: 80
rates:
  source: treasury
  default_rate: 0.045
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ENGINE_CHUNK_SIZE", "64")

	cfg := Load()

	if cfg.Port != "9090" || cfg.DefaultModel != "merton" {
		t.Errorf("server section not applied: port=%q model=%q", cfg.Port, cfg.DefaultModel)
	}
	if cfg.Logging.LogLevel != "debug" || cfg.Logging.LogRequests {
		t.Errorf("logging section not applied: %+v", cfg.Logging)
	}
	if cfg.Engine.ExecutionMode != "chunked" || cfg.Engine.ParallelThreshold != 50000 || cfg.Engine.ErrorMode != "collect" {
		t.Errorf("engine section not applied: %+v", cfg.Engine)
	}
	if cfg.Engine.ChunkSize != 64 {
		t.Errorf("Expected env chunk size to survive an overlay without one, got %d", cfg.Engine.ChunkSize)
	}
	if cfg.Solver.MaxVolatility != 3.5 || cfg.Solver.MaxIterations != 80 {
		t.Errorf("solver section not applied: %+v", cfg.Solver)
	}
	if cfg.Rates.Source != "treasury" || cfg.Rates.DefaultRate != 0.045 || cfg.Rates.CacheMinutes != 60 {
		t.Errorf("rates section not applied: %+v", cfg.Rates)
	}
}

func TestBadYAMLIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("engine: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if loadYAMLConfig(path) != nil {
		t.Errorf("Expected nil for unparseable YAML")
	}
}
