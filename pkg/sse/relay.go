// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// relayChunkSize is the read buffer size for upstream bodies. Token
	// events are small; 4 KB keeps flush latency low without thrashing.
	relayChunkSize = 4 * 1024
)

// =============================================================================
// Interface Definition
// =============================================================================

// Flusher is the subset of http.Flusher the relay needs.
type Flusher interface {
	Flush()
}

// =============================================================================
// Struct Definition
// =============================================================================

// Relay tees an upstream SSE byte stream to a client while accumulating
// token text on the side.
//
// # Description
//
// Relay copies upstream bytes to the client writer verbatim, flushing after
// every chunk so tokens render as they arrive. The same bytes are fed
// through a LineParser, each completed line through ExtractToken, and each
// token into the TokenAccumulator. The client-facing copy is the primary
// obligation: accumulation failures (overflow, malformed payloads) are
// counted and logged but never interrupt the stream.
//
// # Thread Safety
//
// Not safe for concurrent use. One Relay per exchange.
type Relay struct {
	acc       TokenAccumulator
	parser    *LineParser
	log       *slog.Logger
	tokens    int
	malformed int
	sawDone   bool
}

// =============================================================================
// Constructor
// =============================================================================

// NewRelay creates a relay that accumulates into acc.
//
// The logger may be nil, in which case slog.Default() is used.
func NewRelay(acc TokenAccumulator, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		acc:    acc,
		parser: NewLineParser(),
		log:    log,
	}
}

// =============================================================================
// Methods
// =============================================================================

// Copy streams upstream to client until EOF, context cancellation, or the
// first unrecoverable I/O error.
//
// # Description
//
// Bytes reaching the client are exactly the bytes read from upstream; the
// accumulation pipeline observes a copy and cannot alter the stream. When
// Copy returns, whatever tokens arrived before the error are in the
// accumulator, so callers can persist partial replies after an upstream
// failure or client disconnect.
//
// # Inputs
//
//   - ctx: Cancels the copy between chunks
//   - client: Destination writer; flushed after every chunk if it implements
//     Flusher
//   - upstream: Source SSE byte stream
//
// # Outputs
//
//   - error: First client-write or upstream-read error, nil on clean EOF
func (r *Relay) Copy(ctx context.Context, client io.Writer, upstream io.Reader) error {
	flusher, _ := client.(Flusher)
	buf := make([]byte, relayChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			r.finishParse()
			return err
		}

		n, readErr := upstream.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, writeErr := client.Write(chunk); writeErr != nil {
				r.accumulate(chunk)
				r.finishParse()
				return fmt.Errorf("client write: %w", writeErr)
			}
			if flusher != nil {
				flusher.Flush()
			}
			r.accumulate(chunk)
		}
		if readErr != nil {
			r.finishParse()
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("upstream read: %w", readErr)
		}
	}
}

// Tokens returns how many token events were accumulated.
func (r *Relay) Tokens() int {
	return r.tokens
}

// Malformed returns how many data lines failed to decode.
func (r *Relay) Malformed() int {
	return r.malformed
}

// SawDone reports whether the terminal sentinel was observed, i.e. the
// upstream stream completed rather than being cut off.
func (r *Relay) SawDone() bool {
	return r.sawDone
}

// accumulate feeds a chunk through the parse pipeline.
func (r *Relay) accumulate(chunk []byte) {
	for _, line := range r.parser.Feed(chunk) {
		r.consumeLine(line)
	}
}

// finishParse drains any unterminated final line.
func (r *Relay) finishParse() {
	if line, ok := r.parser.Flush(); ok {
		r.consumeLine(line)
	}
}

func (r *Relay) consumeLine(line string) {
	if IsDoneLine(line) {
		r.sawDone = true
		return
	}

	token, ok := ExtractToken(line)
	if !ok {
		if looksLikeData(line) {
			r.malformed++
		}
		return
	}

	if err := r.acc.Write(token); err != nil {
		// Overflow or destroyed buffer. The client keeps receiving the
		// stream; the stored reply is simply truncated.
		r.log.Warn("token accumulation failed",
			"accumulator_id", r.acc.ID(),
			"error", err,
		)
	} else {
		r.tokens++
	}
}

// looksLikeData reports whether a skipped line claimed to carry a payload.
func looksLikeData(line string) bool {
	trimmed := line
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t') {
		trimmed = trimmed[1:]
	}
	return len(trimmed) >= 5 && trimmed[:5] == "data:"
}
