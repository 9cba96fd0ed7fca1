package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultConfigFile is read by Load when CONFIG_FILE is not set.
const DefaultConfigFile = "config.yaml"

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	LogRequests bool   `yaml:"log_requests"`
}

// EngineConfig represents batch execution configuration
type EngineConfig struct {
	ExecutionMode       string `yaml:"execution_mode"`       // auto, sequential, chunked, parallel
	SequentialThreshold int    `yaml:"sequential_threshold"` // below this a batch runs as a plain loop
	ParallelThreshold   int    `yaml:"parallel_threshold"`   // at or above this a batch is split across workers
	ChunkSize           int    `yaml:"chunk_size"`           // elements per chunk
	Workers             int    `yaml:"workers"`              // 0 = GOMAXPROCS
	ErrorMode           string `yaml:"error_mode"`           // fail_fast, collect
	MaxBatchSize        int    `yaml:"max_batch_size"`       // HTTP batch limit, 0 = unlimited
}

// SolverConfig represents implied volatility solver configuration.
// Zero values select the solver defaults.
type SolverConfig struct {
	MinVolatility        float64 `yaml:"min_volatility"`
	MaxVolatility        float64 `yaml:"max_volatility"`
	PriceTolerance       float64 `yaml:"price_tolerance"`
	VolTolerance         float64 `yaml:"vol_tolerance"`
	VegaFloor            float64 `yaml:"vega_floor"`
	MaxIterations        int     `yaml:"max_iterations"`
	MaxBracketIterations int     `yaml:"max_bracket_iterations"`
}

// RatesConfig selects where requests without a rate get one.
type RatesConfig struct {
	Source       string  `yaml:"source"`        // "treasury" or "" for a fixed rate
	TreasuryURL  string  `yaml:"treasury_url"`  // fiscal data API base
	DefaultRate  float64 `yaml:"default_rate"`  // fixed rate, and the fallback before the first fetch
	CacheMinutes int     `yaml:"cache_minutes"` // how long a fetched rate is reused
}

type Config struct {
	// Server settings
	Port string

	// Default model and option type for requests that omit them
	DefaultModel      string
	DefaultOptionType string

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
	// Engine settings
	Engine EngineConfig `yaml:"engine"`
	// Solver settings
	Solver SolverConfig `yaml:"solver"`
	// Risk-free rate source
	Rates RatesConfig `yaml:"rates"`
}

type YAMLConfig struct {
	Server struct {
		Port              string `yaml:"port"`
		DefaultModel      string `yaml:"default_model"`
		DefaultOptionType string `yaml:"default_option_type"`
	} `yaml:"server"`

	Logging struct {
		LogLevel    string `yaml:"log_level"`
		LogFile     string `yaml:"log_file"`
		LogRequests *bool  `yaml:"log_requests"` // nil leaves the env value
	} `yaml:"logging"`
	Engine EngineConfig `yaml:"engine"`
	Solver SolverConfig `yaml:"solver"`
	Rates  RatesConfig  `yaml:"rates"`
}

// Load reads .env (if present) into the environment, builds the defaults from
// the environment and overlays config.yaml (or CONFIG_FILE) on top.
func Load() *Config {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DefaultModel:      getEnv("DEFAULT_MODEL", "black_scholes"),
		DefaultOptionType: getEnv("DEFAULT_OPTION_TYPE", "call"),
		Logging: LoggingConfig{
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFile:     getEnv("LOG_FILE", "optionkit.log"),
			LogRequests: getEnvBool("LOG_REQUESTS", true),
		},

		// Zero thresholds fall through to the executor defaults
		Engine: EngineConfig{
			ExecutionMode:       getEnv("ENGINE_EXECUTION_MODE", "auto"),
			SequentialThreshold: getEnvInt("ENGINE_SEQUENTIAL_THRESHOLD", 0),
			ParallelThreshold:   getEnvInt("ENGINE_PARALLEL_THRESHOLD", 0),
			ChunkSize:           getEnvInt("ENGINE_CHUNK_SIZE", 0),
			Workers:             getEnvInt("ENGINE_WORKERS", 0),
			ErrorMode:           getEnv("ENGINE_ERROR_MODE", "fail_fast"),
			MaxBatchSize:        getEnvInt("ENGINE_MAX_BATCH_SIZE", 1000000),
		},

		Solver: SolverConfig{
			MinVolatility:        getEnvFloat("SOLVER_MIN_VOLATILITY", 0),
			MaxVolatility:        getEnvFloat("SOLVER_MAX_VOLATILITY", 0),
			PriceTolerance:       getEnvFloat("SOLVER_PRICE_TOLERANCE", 0),
			VolTolerance:         getEnvFloat("SOLVER_VOL_TOLERANCE", 0),
			VegaFloor:            getEnvFloat("SOLVER_VEGA_FLOOR", 0),
			MaxIterations:        getEnvInt("SOLVER_MAX_ITERATIONS", 0),
			MaxBracketIterations: getEnvInt("SOLVER_MAX_BRACKET_ITERATIONS", 0),
		},

		Rates: RatesConfig{
			Source:       getEnv("RATE_SOURCE", ""),
			TreasuryURL:  getEnv("TREASURY_URL", "https://api.fiscaldata.treasury.gov/services/api/fiscal_service"),
			DefaultRate:  getEnvFloat("DEFAULT_RATE", 0),
			CacheMinutes: getEnvInt("RATE_CACHE_MINUTES", 60),
		},
	}

	if yamlCfg := loadYAMLConfig(getEnv("CONFIG_FILE", DefaultConfigFile)); yamlCfg != nil {
		cfg.applyYAML(yamlCfg)
	}

	return cfg
}

// applyYAML overlays the non-zero values of y.
func (cfg *Config) applyYAML(y *YAMLConfig) {
	if y.Server.Port != "" {
		cfg.Port = y.Server.Port
	}
	if y.Server.DefaultModel != "" {
		cfg.DefaultModel = y.Server.DefaultModel
	}
	if y.Server.DefaultOptionType != "" {
		cfg.DefaultOptionType = y.Server.DefaultOptionType
	}

	// Logging configuration from YAML
	if y.Logging.LogLevel != "" {
		cfg.Logging.LogLevel = y.Logging.LogLevel
	}
	if y.Logging.LogFile != "" {
		cfg.Logging.LogFile = y.Logging.LogFile
	}
	if y.Logging.LogRequests != nil {
		cfg.Logging.LogRequests = *y.Logging.LogRequests
	}

	// Engine configuration from YAML
	e := y.Engine
	if e.ExecutionMode != "" {
		cfg.Engine.ExecutionMode = e.ExecutionMode
	}
	if e.ErrorMode != "" {
		cfg.Engine.ErrorMode = e.ErrorMode
	}
	setInt(&cfg.Engine.SequentialThreshold, e.SequentialThreshold)
	setInt(&cfg.Engine.ParallelThreshold, e.ParallelThreshold)
	setInt(&cfg.Engine.ChunkSize, e.ChunkSize)
	setInt(&cfg.Engine.Workers, e.Workers)
	setInt(&cfg.Engine.MaxBatchSize, e.MaxBatchSize)

	// Solver configuration from YAML
	s := y.Solver
	setFloat(&cfg.Solver.MinVolatility, s.MinVolatility)
	setFloat(&cfg.Solver.MaxVolatility, s.MaxVolatility)
	setFloat(&cfg.Solver.PriceTolerance, s.PriceTolerance)
	setFloat(&cfg.Solver.VolTolerance, s.VolTolerance)
	setFloat(&cfg.Solver.VegaFloor, s.VegaFloor)
	setInt(&cfg.Solver.MaxIterations, s.MaxIterations)
	setInt(&cfg.Solver.MaxBracketIterations, s.MaxBracketIterations)

	// Rate source from YAML
	if y.Rates.Source != "" {
		cfg.Rates.Source = y.Rates.Source
	}
	if y.Rates.TreasuryURL != "" {
		cfg.Rates.TreasuryURL = y.Rates.TreasuryURL
	}
	setFloat(&cfg.Rates.DefaultRate, y.Rates.DefaultRate)
	setInt(&cfg.Rates.CacheMinutes, y.Rates.CacheMinutes)
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func loadYAMLConfig(path string) *YAMLConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		// Could not read the file - silently return nil
		return nil
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		// Could not parse the file - silently return nil
		return nil
	}

	return &yamlCfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
