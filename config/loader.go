// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty and the file exists), then environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays WILLIWAW_* environment variables.
func applyEnv(cfg *Config) {
	setString(&cfg.Port, "WILLIWAW_PORT")
	setString(&cfg.DataDir, "WILLIWAW_DATA_DIR")
	setString(&cfg.UIDir, "WILLIWAW_UI_DIR")
	setString(&cfg.SystemPrompt, "WILLIWAW_SYSTEM_PROMPT")
	setString(&cfg.Backend, "WILLIWAW_LLM_BACKEND")

	setString(&cfg.WorkersAI.BaseURL, "WILLIWAW_WORKERS_AI_BASE_URL")
	setString(&cfg.WorkersAI.Model, "WILLIWAW_WORKERS_AI_MODEL")
	setString(&cfg.WorkersAI.APIToken, "WILLIWAW_WORKERS_AI_TOKEN")

	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "WILLIWAW_OPENAI_BASE_URL")
	setString(&cfg.OpenAI.Model, "WILLIWAW_OPENAI_MODEL")

	if v := os.Getenv("WILLIWAW_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("WILLIWAW_HISTORY_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.HistoryTTL = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
