package config

import "time"

// ConfirmConfig controls the default timeout the Confirmation Middleware
// applies to a gated tool call when the request doesn't specify its own.
type ConfirmConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

func applyConfirmDefaults(cfg *ConfirmConfig) {
	cfg.DefaultTimeout = durationOrDefault(cfg.DefaultTimeout, 300*time.Second)
}

// ConversationConfig bounds the Context Manager's per-chat history.
type ConversationConfig struct {
	MaxMessages int `yaml:"max_messages"`
}

func applyConversationDefaults(cfg *ConversationConfig) {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 50
	}
}

// EventBusConfig sizes the orchestrator's lifecycle event ring buffer.
type EventBusConfig struct {
	RingSize int `yaml:"ring_size"`
}

func applyEventBusDefaults(cfg *EventBusConfig) {
	if cfg.RingSize <= 0 {
		cfg.RingSize = 1000
	}
}
