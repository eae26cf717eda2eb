package config

import "time"

// ExecutorConfig controls the defaults fed into every orchestrator.ProcessMessage
// run's executor.Request.
type ExecutorConfig struct {
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	MaxCostUSD  float64       `yaml:"max_cost_usd"`
	Ceiling     time.Duration `yaml:"ceiling"`
}

func applyExecutorDefaults(cfg *ExecutorConfig) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxCostUSD <= 0 {
		cfg.MaxCostUSD = 1.0
	}
	cfg.Ceiling = durationOrDefault(cfg.Ceiling, 400*time.Second)
}
