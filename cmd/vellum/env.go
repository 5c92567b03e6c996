package main

import (
	"os"
	"strconv"

	"github.com/MLGBJDLW/vellum-sub012/internal/config"
)

// applyEnvOverrides layers environment variables over the persisted
// config. Flags still win over both.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("VELLUM_PROVIDER"); v != "" {
		cfg.LLMProvider = v
	}
	if v := os.Getenv("VELLUM_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("VELLUM_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("VELLUM_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("VELLUM_TRUST_PRESET"); v != "" {
		cfg.TrustPreset = v
	}
	if v := os.Getenv("VELLUM_EVIDENCE_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvidenceBudget = n
		}
	}

	// Provider-conventional key variables as fallbacks.
	if cfg.APIKey == "" {
		switch cfg.LLMProvider {
		case "anthropic":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}
