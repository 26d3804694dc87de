// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AliSaadatV/AcmGENTIC/internal/assess"
	"github.com/AliSaadatV/AcmGENTIC/internal/convert"
	"github.com/AliSaadatV/AcmGENTIC/internal/extract"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

// apiKeyEnv lists the environment variables holding each provider's key,
// in lookup order.
var apiKeyEnv = map[types.LLMProvider][]string{
	types.ProviderOpenAI:    {"OPENAI_API_KEY"},
	types.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	types.ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// setDefaults registers every config key with its default and binds the
// unprefixed environment variables shared with other tools.
func setDefaults(v *viper.Viper) {
	userAgent := "acmgentic/" + version

	v.SetDefault("annotation.enabled", true)
	v.SetDefault("annotation.timeout", 30*time.Second)
	v.SetDefault("annotation.user_agent", userAgent)

	v.SetDefault("literature.timeout", 30*time.Second)
	v.SetDefault("literature.user_agent", userAgent)
	v.SetDefault("literature.litvar_interval", 500*time.Millisecond)
	v.SetDefault("literature.pubmed_interval", 100*time.Millisecond)
	v.SetDefault("literature.ncbi_api_key", "")
	v.SetDefault("literature.ncbi_email", "")
	v.SetDefault("literature.max_text_chars", extract.DefaultMaxTextChars)

	v.SetDefault("acquisition.enabled", false)
	v.SetDefault("acquisition.timeout", 60*time.Second)
	v.SetDefault("acquisition.user_agent", userAgent)
	v.SetDefault("acquisition.mailto", "")

	v.SetDefault("conversion.enabled", false)
	v.SetDefault("conversion.image", convert.DefaultImage)

	v.SetDefault("ai.provider", string(types.ProviderOpenAI))
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.temperature", 0.0)
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.timeout", 2*time.Minute)

	v.SetDefault("assessment.min_controls_length", assess.DefaultMinControlsLength)

	v.SetDefault("report.format", string(types.OutputHTML))
	v.SetDefault("report.output_dir", "output_report")

	v.SetDefault("store.dir", "output/index")
	v.SetDefault("store.enabled", true)

	v.SetDefault("concurrency", 4)
	v.SetDefault("pdf_dir", "func_papers_pdf")
	v.SetDefault("item_timeout", 2*time.Minute)

	for key, env := range map[string]string{
		"ai.provider":             "LLM_PROVIDER",
		"ai.model":                "LLM_MODEL",
		"ai.temperature":          "LLM_TEMPERATURE",
		"literature.ncbi_api_key": "NCBI_API_KEY",
		"literature.ncbi_email":   "NCBI_EMAIL",
	} {
		_ = v.BindEnv(key, "ACMGENTIC_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
}

// loadConfig decodes v into a PipelineConfig and resolves the provider's
// API key from the environment when the config leaves it empty.
func loadConfig(v *viper.Viper) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	cfg.AI.Provider = types.LLMProvider(strings.ToLower(strings.TrimSpace(string(cfg.AI.Provider))))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = types.ProviderOpenAI
	}
	envs, ok := apiKeyEnv[cfg.AI.Provider]
	if !ok {
		return cfg, fmt.Errorf("unsupported LLM provider %q (supported: openai, anthropic, gemini)", cfg.AI.Provider)
	}
	if cfg.AI.APIKey == "" {
		for _, env := range envs {
			if key := os.Getenv(env); key != "" {
				cfg.AI.APIKey = key
				break
			}
		}
	}

	if cfg.Acquisition.Mailto == "" {
		cfg.Acquisition.Mailto = cfg.Literature.NCBIEmail
	}

	if cfg.Concurrency < 1 {
		return cfg, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.Assessment.MinControlsLength < 1 {
		return cfg, fmt.Errorf("assessment.min_controls_length must be at least 1, got %d", cfg.Assessment.MinControlsLength)
	}
	return cfg, nil
}
