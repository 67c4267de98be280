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
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// LineParser Tests
// =============================================================================

func TestLineParser_Feed_CompleteLines(t *testing.T) {
	p := NewLineParser()

	lines := p.Feed([]byte("data: {\"response\":\"Hi\"}\n\ndata: [DONE]\n"))

	want := []string{`data: {"response":"Hi"}`, "", "data: [DONE]"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Feed() = %q, want %q", lines, want)
	}
	if p.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", p.Pending())
	}
}

func TestLineParser_Feed_LineSplitAcrossChunks(t *testing.T) {
	p := NewLineParser()

	if lines := p.Feed([]byte(`data: {"respon`)); lines != nil {
		t.Fatalf("incomplete chunk yielded lines: %q", lines)
	}
	lines := p.Feed([]byte("se\":\"Hi\"}\n"))

	want := []string{`data: {"response":"Hi"}`}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Feed() = %q, want %q", lines, want)
	}
}

func TestLineParser_Feed_MultiByteRuneSplit(t *testing.T) {
	p := NewLineParser()
	full := "data: {\"response\":\"héllo ✓\"}\n"
	raw := []byte(full)

	// Split inside the two-byte é and the three-byte ✓.
	var lines []string
	for i := range raw {
		lines = append(lines, p.Feed(raw[i:i+1])...)
	}

	want := []string{strings.TrimSuffix(full, "\n")}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("byte-at-a-time feed = %q, want %q", lines, want)
	}
}

func TestLineParser_Feed_CRLF(t *testing.T) {
	p := NewLineParser()

	lines := p.Feed([]byte("data: [DONE]\r\n"))

	if len(lines) != 1 || lines[0] != "data: [DONE]" {
		t.Errorf("Feed() = %q, want [%q]", lines, "data: [DONE]")
	}
}

func TestLineParser_Flush_UnterminatedRemainder(t *testing.T) {
	p := NewLineParser()

	p.Feed([]byte("data: [DONE]"))
	line, ok := p.Flush()

	if !ok || line != "data: [DONE]" {
		t.Errorf("Flush() = (%q, %v), want (%q, true)", line, ok, "data: [DONE]")
	}
	if _, ok := p.Flush(); ok {
		t.Error("second Flush() returned ok, want empty")
	}
}

// TestLineParser_ChunkingInvariance verifies the core property: the sequence
// of parsed lines is independent of how the byte stream is chunked.
func TestLineParser_ChunkingInvariance(t *testing.T) {
	stream := "data: {\"response\":\"Wh\"}\n\n" +
		"data: {\"response\":\"y is\"}\n\n" +
		": keep-alive\n" +
		"data: {\"response\":\" the sky blue? ☀\"}\n\n" +
		"data: [DONE]\n\n"

	whole := NewLineParser().Feed([]byte(stream))

	for _, size := range []int{1, 2, 3, 5, 7, 16} {
		p := NewLineParser()
		var got []string
		raw := []byte(stream)
		for start := 0; start < len(raw); start += size {
			end := start + size
			if end > len(raw) {
				end = len(raw)
			}
			got = append(got, p.Feed(raw[start:end])...)
		}
		if !reflect.DeepEqual(got, whole) {
			t.Errorf("chunk size %d: lines %q, want %q", size, got, whole)
		}
	}
}

// =============================================================================
// ExtractToken Tests
// =============================================================================

func TestExtractToken_TokenLine(t *testing.T) {
	token, ok := ExtractToken(`data: {"response":"Hello"}`)
	if !ok || token != "Hello" {
		t.Errorf("ExtractToken() = (%q, %v), want (%q, true)", token, ok, "Hello")
	}
}

func TestExtractToken_NoSpaceAfterPrefix(t *testing.T) {
	token, ok := ExtractToken(`data:{"response":" world"}`)
	if !ok || token != " world" {
		t.Errorf("ExtractToken() = (%q, %v), want (%q, true)", token, ok, " world")
	}
}

func TestExtractToken_EmptyResponseField(t *testing.T) {
	// A token event with an empty response is still a token event.
	token, ok := ExtractToken(`data: {"response":""}`)
	if !ok || token != "" {
		t.Errorf("ExtractToken() = (%q, %v), want (\"\", true)", token, ok)
	}
}

func TestExtractToken_SkippedLines(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"comment", ": keep-alive"},
		{"done_sentinel", "data: [DONE]"},
		{"event_field", "event: message"},
		{"malformed_json", `data: {"response":`},
		{"bare_text", "not an sse line"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if token, ok := ExtractToken(tc.line); ok {
				t.Errorf("ExtractToken(%q) = (%q, true), want skipped", tc.line, token)
			}
		})
	}
}

// =============================================================================
// IsDoneLine Tests
// =============================================================================

func TestIsDoneLine(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"data: [DONE]", true},
		{"data:[DONE]", true},
		{"  data: [DONE]  ", true},
		{`data: {"response":"[DONE]"}`, false},
		{"[DONE]", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsDoneLine(tc.line); got != tc.want {
			t.Errorf("IsDoneLine(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}
