package config

import "time"

// BreakerConfig parameterizes the default circuit breaker applied to
// every backend, matching breaker.Config.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	OpenDuration     time.Duration `yaml:"open_duration"`
}

func applyBreakerDefaults(cfg *BreakerConfig) {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	cfg.OpenDuration = durationOrDefault(cfg.OpenDuration, 30*time.Second)
}
