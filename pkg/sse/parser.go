// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sse provides parsing and relaying for Server-Sent Events token
// streams in the hosted-inference wire format:
//
//	data: {"response":"Hello"}\n
//	\n
//	data: {"response":" world"}\n
//	\n
//	data: [DONE]\n
//
// Single Responsibility:
//
//	Parsers ONLY parse. They do not perform I/O, rendering, or state
//	management. Relay composes a parser with I/O; TokenAccumulator owns
//	storage. This separation enables easy testing and format extensibility.
package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DoneSentinel is the data payload that terminates a token stream.
	DoneSentinel = "[DONE]"
)

// =============================================================================
// Line Parser
// =============================================================================

// LineParser reassembles complete lines from a stream of arbitrary byte
// chunks.
//
// # Description
//
// Upstream HTTP bodies arrive in chunks that split SSE lines (and multi-byte
// UTF-8 runes) at arbitrary byte boundaries. LineParser buffers bytes and
// only splits at '\n', so a line fed across N chunks is surfaced exactly
// once, intact, when its newline arrives.
//
// # Thread Safety
//
// Not safe for concurrent use. Each stream gets its own parser.
//
// # Examples
//
//	p := NewLineParser()
//	lines := p.Feed([]byte("data: {\"respon"))   // nil
//	lines = p.Feed([]byte("se\":\"Hi\"}\n"))      // ["data: {\"response\":\"Hi\"}"]
type LineParser struct {
	buf bytes.Buffer
}

// NewLineParser creates a parser with an empty carry buffer.
func NewLineParser() *LineParser {
	return &LineParser{}
}

// Feed appends a chunk and returns every line completed by it.
//
// Returned lines have their trailing '\n' (and '\r', for CRLF streams)
// stripped. Bytes after the last newline stay buffered for the next chunk.
func (p *LineParser) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	p.buf.Write(chunk)

	var lines []string
	for {
		data := p.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimSuffix(data[:idx], []byte{'\r'}))
		lines = append(lines, line)
		p.buf.Next(idx + 1)
	}
	return lines
}

// Flush returns the unterminated remainder, if any, and resets the buffer.
//
// Call once at end of stream so a final line without a trailing newline is
// not lost.
func (p *LineParser) Flush() (string, bool) {
	if p.buf.Len() == 0 {
		return "", false
	}
	line := strings.TrimSuffix(p.buf.String(), "\r")
	p.buf.Reset()
	return line, true
}

// Pending reports how many bytes are buffered awaiting a newline.
func (p *LineParser) Pending() int {
	return p.buf.Len()
}

// =============================================================================
// Token Extraction
// =============================================================================

// tokenPayload matches the data payload of one token event.
type tokenPayload struct {
	Response string `json:"response"`
}

// ExtractToken pulls the token text out of a single SSE line.
//
// # Description
//
// Handles the following line types:
//   - Empty lines: event delimiters, skipped
//   - Comment lines (":"): skipped
//   - "data: [DONE]": terminal sentinel, skipped
//   - "data: {json}": decoded, "response" field returned
//
// Both "data: " and "data:" prefixes are accepted (some servers omit the
// space). Lines without a data prefix and data payloads that fail to decode
// are tolerated and skipped; a malformed line must never abort a stream.
//
// # Outputs
//
//   - string: The token text ("" is a valid token only when ok is true)
//   - bool: True when the line carried a decodable token event
func ExtractToken(line string) (string, bool) {
	line = strings.TrimSpace(line)

	if line == "" {
		return "", false
	}
	if strings.HasPrefix(line, ":") {
		return "", false
	}

	var payload string
	switch {
	case strings.HasPrefix(line, "data: "):
		payload = strings.TrimPrefix(line, "data: ")
	case strings.HasPrefix(line, "data:"):
		payload = strings.TrimPrefix(line, "data:")
	default:
		// Field lines like "event:" or "id:" carry no token content.
		return "", false
	}

	payload = strings.TrimSpace(payload)
	if payload == "" || payload == DoneSentinel {
		return "", false
	}

	var tok tokenPayload
	if err := json.Unmarshal([]byte(payload), &tok); err != nil {
		return "", false
	}
	return tok.Response, true
}

// IsDoneLine reports whether the line is the terminal sentinel event.
func IsDoneLine(line string) bool {
	line = strings.TrimSpace(line)
	payload := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
	return strings.HasPrefix(line, "data:") && payload == DoneSentinel
}
