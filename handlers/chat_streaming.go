// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/williwaw/datatypes"
	"github.com/AleutianAI/williwaw/llm"
	"github.com/AleutianAI/williwaw/middleware"
	"github.com/AleutianAI/williwaw/observability"
	"github.com/AleutianAI/williwaw/pkg/sse"
)

var tracer = otel.Tracer("aleutian.williwaw.handlers")

// ChatStreaming handles POST /api/chat.
//
// # Description
//
// Runs one conversation turn end to end:
//
//  1. Bind and validate the request body.
//  2. Load the user's conversation record; a new chatId gets the lowest
//     free "Chat N" name.
//  3. Merge stored history with the incoming messages, injecting the
//     default system prompt when the merged list carries none.
//  4. Open the upstream token stream. Failure here, before any response
//     byte, surfaces as a 500.
//  5. Relay upstream bytes to the client verbatim while a tee accumulates
//     the reply text.
//  6. Hand the finished turn to the scheduler for persistence. The write
//     happens off the request lifecycle, so a client that disconnects
//     mid-answer still gets the partial turn stored.
//
// # Limitations
//
//   - The whole user record is one KV entry; two simultaneous chats under
//     the same userId race on the final write (last writer wins).
func ChatStreaming(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.ChatStreaming")
		defer span.End()
		log := deps.logger().With("request_id", middleware.GetRequestID(c))

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			countRequest(deps, observability.EndpointChatStream, observability.StatusError)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
		if err := req.Validate(); err != nil {
			countRequest(deps, observability.EndpointChatStream, observability.StatusError)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		span.SetAttributes(
			attribute.String("chat.user_id", req.UserID),
			attribute.String("chat.chat_id", req.ChatID),
			attribute.Int("chat.incoming_messages", len(req.Messages)),
		)

		// A read failure degrades to an empty record: the turn proceeds
		// and the deferred save rebuilds the entry.
		set, err := deps.Store.Load(ctx, req.UserID)
		if err != nil {
			log.Warn("history load failed, continuing with empty record",
				"user_id", req.UserID,
				"error", err,
			)
			set = datatypes.ConversationSet{}
		}

		conv := set.Get(req.ChatID)
		if conv == nil {
			conv = &datatypes.Conversation{Name: set.NextChatName()}
			set[req.ChatID] = conv
		}

		merged := append(append([]datatypes.Message{}, conv.Messages...),
			datatypes.NormalizeMessages(req.Messages)...)
		merged = datatypes.EnsureSystemPrompt(merged, deps.systemPrompt())

		maxTokens := deps.maxTokens()
		upstream, err := deps.LLM.ChatStream(ctx, toChatInputs(merged),
			llm.GenerationParams{MaxTokens: &maxTokens})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			countRequest(deps, observability.EndpointChatStream, observability.StatusError)
			log.Error("upstream stream failed to open", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "inference backend unavailable"})
			return
		}
		defer upstream.Close()
		observeFirstByte(deps, c)

		acc, err := sse.NewTokenAccumulator()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			countRequest(deps, observability.EndpointChatStream, observability.StatusError)
			log.Error("accumulator allocation failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		SetSSEHeaders(c.Writer)
		c.Status(http.StatusOK)

		relay := sse.NewRelay(acc, log)
		streamStart := time.Now()
		if deps.Metrics != nil {
			deps.Metrics.ActiveStreams.Inc()
		}
		streamErr := relay.Copy(ctx, c.Writer, upstream)
		if deps.Metrics != nil {
			deps.Metrics.ActiveStreams.Dec()
		}

		status := observability.StatusSuccess
		if streamErr != nil {
			status = observability.StatusError
			if errors.Is(streamErr, context.Canceled) {
				if deps.Metrics != nil {
					deps.Metrics.ClientDisconnectsTotal.Inc()
				}
				log.Info("client disconnected mid-stream",
					"user_id", req.UserID,
					"chat_id", req.ChatID,
					"tokens", relay.Tokens(),
				)
			} else {
				span.RecordError(streamErr)
				span.SetStatus(codes.Error, streamErr.Error())
				log.Error("stream relay failed", "error", streamErr)
			}
		}
		recordStream(deps, status, streamStart, relay)
		countRequest(deps, observability.EndpointChatStream, status)

		answer, digest, finErr := acc.Finalize()
		if finErr != nil {
			log.Error("accumulator finalize failed", "error", finErr)
			acc.Destroy()
			return
		}
		log.Debug("turn accumulated",
			"user_id", req.UserID,
			"chat_id", req.ChatID,
			"answer_bytes", len(answer),
			"answer_sha256", digest[:16],
			"complete", relay.SawDone(),
		)

		// Persist off the request lifecycle. The merged slice already
		// belongs to this request, so the task closure owns it outright.
		if answer != "" {
			merged = append(merged, datatypes.Message{
				Role:    datatypes.RoleAssistant,
				Content: answer,
			})
		}
		conv.Messages = merged

		userID, chatID := req.UserID, req.ChatID
		deps.Scheduler.Schedule("persist-turn", func(taskCtx context.Context) {
			if err := deps.Store.Save(taskCtx, userID, set); err != nil {
				countPersist(deps, observability.StatusError)
				deps.logger().Error("turn persistence failed",
					"user_id", userID,
					"chat_id", chatID,
					"error", err,
				)
				return
			}
			countPersist(deps, observability.StatusSuccess)
		})
	}
}

// toChatInputs converts stored messages to the backend input shape.
func toChatInputs(msgs []datatypes.Message) []llm.ChatInput {
	out := make([]llm.ChatInput, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.ChatInput{Role: m.Role, Content: m.Content})
	}
	return out
}

func countRequest(deps *Deps, endpoint, status string) {
	if deps.Metrics != nil {
		deps.Metrics.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	}
}

func countPersist(deps *Deps, outcome string) {
	if deps.Metrics != nil {
		deps.Metrics.PersistsTotal.WithLabelValues(outcome).Inc()
	}
}

// observeFirstByte records time-to-first-token from the request start.
// The upstream connection returning headers is the closest observable
// proxy for the first token without hooking the relay loop.
func observeFirstByte(deps *Deps, c *gin.Context) {
	if deps.Metrics == nil {
		return
	}
	if start, ok := c.Get(requestStartKey); ok {
		if t, ok := start.(time.Time); ok {
			deps.Metrics.TimeToFirstTokenSeconds.
				WithLabelValues(deps.Backend).
				Observe(time.Since(t).Seconds())
		}
	}
}

func recordStream(deps *Deps, status string, start time.Time, relay *sse.Relay) {
	if deps.Metrics == nil {
		return
	}
	deps.Metrics.StreamDurationSeconds.
		WithLabelValues(deps.Backend, status).
		Observe(time.Since(start).Seconds())
	deps.Metrics.TokensStreamedTotal.
		WithLabelValues(deps.Backend).
		Add(float64(relay.Tokens()))
	if relay.Malformed() > 0 {
		deps.Metrics.MalformedEventsTotal.Add(float64(relay.Malformed()))
	}
}

// requestStartKey stores the request arrival time for latency metrics.
const requestStartKey = "williwaw_request_start"

// StampRequestStart records arrival time for time-to-first-token
// measurement. Installed ahead of the chat route.
func StampRequestStart() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}
