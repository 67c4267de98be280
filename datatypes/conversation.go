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
// This file contains the persisted conversation record types.
package datatypes

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Conversation Types
// =============================================================================

// Conversation is one named chat thread.
//
// # Fields
//
//   - Name: Display name shown in the conversation list ("Chat 1", or a
//     client-chosen name)
//   - Messages: Full message history in chronological order, including the
//     leading system message once the first turn completes
type Conversation struct {
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
}

// ConversationSet is every conversation a user owns, keyed by chat ID.
//
// The whole set is persisted as a single record per user, so writes are
// last-writer-wins at user granularity.
type ConversationSet map[string]*Conversation

// ConversationSummary is one row of the conversation list response.
type ConversationSummary struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
}

// =============================================================================
// Methods
// =============================================================================

// Get returns the conversation for chatID, or nil if absent.
func (s ConversationSet) Get(chatID string) *Conversation {
	return s[chatID]
}

// NextChatName returns the lowest-numbered default name not in use.
//
// # Description
//
// Default names are "Chat 1", "Chat 2", ... Deleting "Chat 2" and then
// creating a new conversation reuses the gap rather than appending
// "Chat 4". Names not of the default form are ignored by the scan.
//
// # Examples
//
//	set := ConversationSet{
//	    "a": {Name: "Chat 1"},
//	    "b": {Name: "Chat 3"},
//	}
//	set.NextChatName() // "Chat 2"
func (s ConversationSet) NextChatName() string {
	used := make(map[int]bool, len(s))
	for _, conv := range s {
		if n, ok := defaultChatNumber(conv.Name); ok {
			used[n] = true
		}
	}
	for n := 1; ; n++ {
		if !used[n] {
			return fmt.Sprintf("Chat %d", n)
		}
	}
}

// Summaries returns (chatID, name) pairs in a stable order.
//
// Map iteration order is randomized; sorting keeps the conversation list
// stable across requests. Default "Chat N" names sort numerically and
// before custom names; ties break on chat ID.
func (s ConversationSet) Summaries() []ConversationSummary {
	out := make([]ConversationSummary, 0, len(s))
	for id, conv := range s {
		out = append(out, ConversationSummary{ChatID: id, Name: conv.Name})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		an, aok := defaultChatNumber(a.Name)
		bn, bok := defaultChatNumber(b.Name)
		switch {
		case aok && bok:
			if an != bn {
				return an < bn
			}
		case aok != bok:
			return aok
		default:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		}
		return a.ChatID < b.ChatID
	})
	return out
}

// defaultChatNumber extracts N from a default-form "Chat N" name.
//
// Suffixed forms like "Chat 2 (archived)" do not count as default names.
func defaultChatNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "Chat ") {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(name, "Chat %d", &n); err != nil || n < 1 {
		return 0, false
	}
	if name != fmt.Sprintf("Chat %d", n) {
		return 0, false
	}
	return n, true
}
