// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tasks runs work that must outlive an HTTP response.
//
// The chat handler persists a finished turn after the stream closes. That
// write must not ride on the request context: the client may already be
// gone, and gin cancels the request context on disconnect. Handlers take a
// Scheduler so production code defers the work to a goroutine with a
// detached context while tests run it inline.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultTaskTimeout bounds each deferred task. Persistence writes are
	// local KV operations; anything near this limit is already wedged.
	DefaultTaskTimeout = 30 * time.Second
)

// =============================================================================
// Interface Definition
// =============================================================================

// Scheduler queues a named unit of work to run after the caller returns.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Scheduler interface {
	// Schedule queues fn. The context passed to fn is detached from any
	// request lifecycle and carries the scheduler's task timeout.
	Schedule(name string, fn func(ctx context.Context))
}

// =============================================================================
// Background Implementation
// =============================================================================

// BackgroundScheduler runs each task on its own goroutine.
//
// # Description
//
// Tasks get a context.Background()-derived context with a timeout, so a
// client disconnect never cancels a queued write. A WaitGroup tracks
// in-flight tasks; Drain blocks shutdown until they finish.
type BackgroundScheduler struct {
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewBackgroundScheduler creates a scheduler with the given per-task
// timeout. A zero timeout selects DefaultTaskTimeout. The logger may be
// nil.
func NewBackgroundScheduler(timeout time.Duration, log *slog.Logger) *BackgroundScheduler {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &BackgroundScheduler{timeout: timeout, log: log}
}

// Schedule queues fn on a new goroutine.
//
// After Drain has begun, late tasks run inline on the caller's goroutine
// instead of being dropped; the work still happens, it just stops being
// asynchronous.
func (s *BackgroundScheduler) Schedule(name string, fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.runTask(name, fn)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.runTask(name, fn)
	}()
}

// Drain waits for in-flight tasks, bounded by ctx.
//
// Returns ctx.Err() if the deadline passes with tasks still running.
func (s *BackgroundScheduler) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *BackgroundScheduler) runTask(name string, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("deferred task panicked",
				"task", name,
				"panic", r,
			)
		}
	}()

	start := time.Now()
	fn(ctx)
	s.log.Debug("deferred task finished",
		"task", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// =============================================================================
// Synchronous Implementation
// =============================================================================

// SyncScheduler runs tasks inline. For tests, where assertions need the
// side effects of a turn to be visible as soon as the handler returns.
type SyncScheduler struct {
	Timeout time.Duration
}

// Schedule runs fn immediately on the calling goroutine.
func (s *SyncScheduler) Schedule(name string, fn func(ctx context.Context)) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	fn(ctx)
}

// =============================================================================
// Compile-time Interface Checks
// =============================================================================

var (
	_ Scheduler = (*BackgroundScheduler)(nil)
	_ Scheduler = (*SyncScheduler)(nil)
)
