// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the chat service.
//
// # Request ID Flow
//
// Every request gets a correlation ID: the client's X-Request-ID header if
// present, a fresh UUID otherwise. The ID is stored in the Gin context,
// echoed on the response, and attached to the request log line.
//
//	Request
//	   │
//	   ▼
//	RequestID middleware
//	   │
//	   ├─► Reuse "X-Request-ID" header or generate UUID
//	   │
//	   ├─► Store in context, set response header
//	   │
//	   └─► Handler (retrieves via GetRequestID)
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// =============================================================================
// Context Keys
// =============================================================================

// requestIDKey is the context key for the correlation ID.
const requestIDKey = "williwaw_request_id"

// RequestIDHeader is the header carrying the correlation ID in both
// directions.
const RequestIDHeader = "X-Request-ID"

// =============================================================================
// Context Helpers
// =============================================================================

// GetRequestID retrieves the correlation ID from the Gin context.
//
// Returns "" when called outside the RequestID middleware.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// =============================================================================
// Middleware
// =============================================================================

// RequestID assigns a correlation ID to every request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger emits one structured log line per request.
//
// Streaming responses log after the stream closes, so duration covers the
// whole exchange.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			"request_id", GetRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
