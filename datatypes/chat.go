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
// This file contains the request types for the chat endpoints.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message
	// content. Checked as bytes, not runes, to bound memory per request.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in a request.
	MaxMessagesPerRequest = 100
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks that a string field does not exceed
// MaxMessageContentBytes. Byte length, not rune count.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Chat Request
// =============================================================================

// ChatRequest is the body of POST /api/chat.
//
// # Description
//
// Identifies the user and conversation the turn belongs to and carries the
// messages to append. Messages use the permissive union form: a bare string
// is shorthand for a user message (see ChatMessage).
//
// # Fields
//
//   - UserID: Required. Owner of the conversation record.
//   - ChatID: Required. Conversation key within the user's record; an
//     unknown value starts a new conversation.
//   - Messages: Required. 1-100 new messages, each content capped at 32KB.
//
// # Examples
//
//	{"userId": "u-1", "chatId": "c-1", "messages": ["What is 2+2?"]}
//
// # Limitations
//
//   - There is no server-side history truncation; clients that never
//     delete conversations will eventually hit the per-request cap when
//     replaying long histories.
type ChatRequest struct {
	UserID   string        `json:"userId" validate:"required"`
	ChatID   string        `json:"chatId" validate:"required"`
	Messages []ChatMessage `json:"messages" validate:"required,min=1,max=100"`
}

// Validate checks the ChatRequest fields after JSON binding.
func (r *ChatRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return err
	}
	// dive does not see through the union type's custom unmarshal, so the
	// content cap is applied per element here.
	for i := range r.Messages {
		if len(r.Messages[i].Content) > MaxMessageContentBytes {
			return &ContentTooLargeError{Index: i, Bytes: len(r.Messages[i].Content)}
		}
	}
	return nil
}

// ContentTooLargeError reports a message exceeding the per-message cap.
type ContentTooLargeError struct {
	Index int
	Bytes int
}

func (e *ContentTooLargeError) Error() string {
	return fmt.Sprintf("message %d content is %d bytes, limit is %d",
		e.Index, e.Bytes, MaxMessageContentBytes)
}
