// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the chat service.
//
// This file contains the message types shared by the HTTP surface, the
// inference clients, and the conversation store.
package datatypes

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Constants
// =============================================================================

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// =============================================================================
// Message
// =============================================================================

// Message is one turn of a conversation as stored and as sent to the
// inference backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// ChatMessage (request union)
// =============================================================================

// ChatMessage is an incoming message in its permissive wire form.
//
// # Description
//
// The chat endpoint accepts two shapes per element of "messages":
//
//	"What is 2+2?"
//	{"role": "user", "content": "What is 2+2?"}
//
// A bare string is shorthand for a user message. ChatMessage captures either
// shape during JSON binding; Normalize() collapses it to a Message.
//
// # Examples
//
//	var msgs []ChatMessage
//	_ = json.Unmarshal([]byte(`["hi", {"role":"assistant","content":"hello"}]`), &msgs)
//	msgs[0].Normalize() // {Role: "user", Content: "hi"}
type ChatMessage struct {
	Role    string
	Content string
}

// UnmarshalJSON accepts either a JSON string or a {role, content} object.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		m.Role = RoleUser
		m.Content = text
		return nil
	}

	var obj struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("message must be a string or an object with role/content: %w", err)
	}
	m.Role = obj.Role
	m.Content = obj.Content
	return nil
}

// MarshalJSON emits the object form.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(Message{Role: m.Role, Content: m.Content})
}

// Normalize converts the wire form to a stored Message.
//
// Unknown or empty roles default to "user" so a sloppy client cannot inject
// a second system turn by accident.
func (m ChatMessage) Normalize() Message {
	role := m.Role
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		role = RoleUser
	}
	return Message{Role: role, Content: m.Content}
}

// NormalizeMessages converts a slice of wire messages to stored messages.
func NormalizeMessages(in []ChatMessage) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		out = append(out, m.Normalize())
	}
	return out
}

// =============================================================================
// System Prompt Handling
// =============================================================================

// EnsureSystemPrompt guarantees the conversation carries a system message.
//
// # Description
//
// If msgs already contains a system message anywhere, it is returned
// unchanged; otherwise a system message with the given prompt is prepended.
// A conversation that started with the default prompt keeps it at the head;
// one that brought its own system message mid-list keeps that instead of
// gaining a second. Repeated calls never stack prompts.
//
// # Inputs
//
//   - msgs: Conversation in chronological order
//   - prompt: Default system prompt to inject when none is present
//
// # Outputs
//
//   - []Message: Conversation containing exactly one system message when
//     the input contained at most one
func EnsureSystemPrompt(msgs []Message, prompt string) []Message {
	for _, m := range msgs {
		if m.Role == RoleSystem {
			return msgs
		}
	}
	out := make([]Message, 0, len(msgs)+1)
	out = append(out, Message{Role: RoleSystem, Content: prompt})
	return append(out, msgs...)
}
