package config

import "fmt"

// RouterConfig selects the Intelligent Router's strategy and preference tags.
type RouterConfig struct {
	// Strategy is one of AUTO, SPEED, QUALITY, BALANCED, COST_OPTIMIZED.
	Strategy string `yaml:"strategy"`

	// PreferredModels lists model IDs to prefer when scores tie.
	PreferredModels []string `yaml:"preferred_models"`

	// AvoidModels lists model IDs the router should never select.
	AvoidModels []string `yaml:"avoid_models"`
}

func applyRouterDefaults(cfg *RouterConfig) {
	if cfg.Strategy == "" {
		cfg.Strategy = "BALANCED"
	}
}

func validateRouter(cfg RouterConfig) error {
	switch cfg.Strategy {
	case "AUTO", "SPEED", "QUALITY", "BALANCED", "COST_OPTIMIZED":
		return nil
	default:
		return fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
}
