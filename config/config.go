// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the service configuration.
//
// Configuration loads in two layers: an optional YAML file, then
// environment variable overrides. Environment always wins, so container
// deployments can run without a file at all.
package config

import "time"

// Config is the full service configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port string `yaml:"port"`

	// DataDir is the BadgerDB directory.
	DataDir string `yaml:"data_dir"`

	// UIDir holds static chat UI assets. Empty disables the file server.
	UIDir string `yaml:"ui_dir"`

	// HistoryTTL is how long an idle user's record survives.
	HistoryTTL time.Duration `yaml:"history_ttl"`

	// SystemPrompt is injected when a conversation has none.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxTokens caps generation length per turn.
	MaxTokens int `yaml:"max_tokens"`

	// Backend selects the inference client: "workers-ai" or "openai".
	Backend string `yaml:"backend"`

	WorkersAI WorkersAIConfig `yaml:"workers_ai"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
}

// WorkersAIConfig configures the native passthrough backend.
type WorkersAIConfig struct {
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIToken string `yaml:"api_token"`
}

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Port:       "8080",
		DataDir:    "./data",
		UIDir:      "./ui",
		HistoryTTL: 7 * 24 * time.Hour,
		MaxTokens:  1024,
		Backend:    "workers-ai",
		WorkersAI: WorkersAIConfig{
			Model: "@cf/meta/llama-3.1-8b-instruct",
		},
	}
}
