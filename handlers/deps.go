// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides HTTP request handlers for the chat service.
package handlers

import (
	"log/slog"

	"github.com/AleutianAI/williwaw/llm"
	"github.com/AleutianAI/williwaw/observability"
	"github.com/AleutianAI/williwaw/storage"
	"github.com/AleutianAI/williwaw/tasks"
)

// DefaultMaxTokens caps generation length when the deployment does not
// configure its own limit.
const DefaultMaxTokens = 1024

// DefaultSystemPrompt is injected when a conversation has no leading
// system message.
const DefaultSystemPrompt = "You are a helpful, friendly assistant. " +
	"Provide concise and accurate responses."

// Deps carries the collaborators every handler closure needs.
//
// # Fields
//
//   - Store: Conversation record persistence
//   - LLM: Inference backend producing wire-format SSE streams
//   - Scheduler: Runs persistence after the response finishes
//   - Metrics: May be nil in tests; handlers must tolerate that
//   - Log: Base logger; nil selects slog.Default()
//   - SystemPrompt: Default system prompt ("" selects DefaultSystemPrompt)
//   - MaxTokens: Generation cap (0 selects DefaultMaxTokens)
//   - Backend: Metrics label for the configured inference backend
type Deps struct {
	Store        *storage.ConversationStore
	LLM          llm.StreamClient
	Scheduler    tasks.Scheduler
	Metrics      *observability.ChatMetrics
	Log          *slog.Logger
	SystemPrompt string
	MaxTokens    int
	Backend      string
}

func (d *Deps) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

func (d *Deps) systemPrompt() string {
	if d.SystemPrompt != "" {
		return d.SystemPrompt
	}
	return DefaultSystemPrompt
}

func (d *Deps) maxTokens() int {
	if d.MaxTokens > 0 {
		return d.MaxTokens
	}
	return DefaultMaxTokens
}
