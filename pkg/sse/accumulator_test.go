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
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

// =============================================================================
// plainAccumulator Tests
// =============================================================================

func TestPlainAccumulator_WriteOrderPreserved(t *testing.T) {
	acc := newPlainAccumulator()
	defer acc.Destroy()

	for _, tok := range []string{"Why", " is", " the", " sky", " blue?"} {
		if err := acc.Write(tok); err != nil {
			t.Fatalf("Write(%q) failed: %v", tok, err)
		}
	}

	answer, digest, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}
	if answer != "Why is the sky blue?" {
		t.Errorf("answer = %q, want %q", answer, "Why is the sky blue?")
	}

	wantDigest := sha256.Sum256([]byte(answer))
	if digest != hex.EncodeToString(wantDigest[:]) {
		t.Errorf("digest = %q, want %q", digest, hex.EncodeToString(wantDigest[:]))
	}
}

func TestPlainAccumulator_Len(t *testing.T) {
	acc := newPlainAccumulator()
	defer acc.Destroy()

	acc.Write("héllo")
	if acc.Len() != len("héllo") {
		t.Errorf("Len() = %d, want %d", acc.Len(), len("héllo"))
	}
}

func TestPlainAccumulator_OverflowRejected(t *testing.T) {
	acc := newPlainAccumulator()
	defer acc.Destroy()

	big := strings.Repeat("a", SecureBufferSize)
	if err := acc.Write(big); err != nil {
		t.Fatalf("Write() at capacity failed: %v", err)
	}
	if err := acc.Write("b"); err == nil {
		t.Fatal("Write() past capacity succeeded, want overflow error")
	}
	if _, _, err := acc.Finalize(); err == nil {
		t.Fatal("Finalize() after overflow succeeded, want error")
	}
}

func TestPlainAccumulator_WriteAfterFinalizeFails(t *testing.T) {
	acc := newPlainAccumulator()

	acc.Write("hi")
	if _, _, err := acc.Finalize(); err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}
	if err := acc.Write("more"); err == nil {
		t.Error("Write() after Finalize() succeeded, want error")
	}
}

func TestPlainAccumulator_DestroyIdempotent(t *testing.T) {
	acc := newPlainAccumulator()

	acc.Write("secret")
	acc.Destroy()
	acc.Destroy()

	if err := acc.Write("more"); err == nil {
		t.Error("Write() after Destroy() succeeded, want error")
	}
}

// =============================================================================
// NewTokenAccumulator Tests
// =============================================================================

func TestNewTokenAccumulator_RoundTrip(t *testing.T) {
	acc, err := NewTokenAccumulator()
	if err != nil {
		t.Skipf("secure memory unavailable: %v", err)
	}
	defer acc.Destroy()

	if acc.ID() == "" {
		t.Error("ID() is empty")
	}
	if acc.CreatedAt().IsZero() {
		t.Error("CreatedAt() is zero")
	}

	acc.Write("4")
	answer, digest, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}
	if answer != "4" {
		t.Errorf("answer = %q, want %q", answer, "4")
	}
	if len(digest) != 64 {
		t.Errorf("digest length = %d, want 64", len(digest))
	}
}
