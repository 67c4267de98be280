// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/williwaw/datatypes"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// historyKeyPrefix namespaces conversation records in the KV space.
	historyKeyPrefix = "history:"

	// DefaultHistoryTTL is how long a user's record lives without a write.
	// Every save refreshes the clock, so only fully idle users expire.
	DefaultHistoryTTL = 7 * 24 * time.Hour
)

// =============================================================================
// Struct Definition
// =============================================================================

// ConversationStore persists each user's conversations as a single record.
//
// # Description
//
// The record at "history:<userId>" holds the user's whole ConversationSet
// as JSON. Reads and writes move the entire record, so concurrent writers
// under one userId are last-writer-wins; see DeleteChat for the
// read-modify-write shape.
//
// Expiry rides on BadgerDB entry TTLs: a record untouched for the TTL
// window disappears on its own, and the next Load sees a fresh empty set.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
type ConversationStore struct {
	db  *DB
	ttl time.Duration
	log *slog.Logger
}

// =============================================================================
// Constructor
// =============================================================================

// NewConversationStore creates a store over an open engine.
//
// A zero ttl selects DefaultHistoryTTL. The logger may be nil.
func NewConversationStore(db *DB, ttl time.Duration, log *slog.Logger) *ConversationStore {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &ConversationStore{db: db, ttl: ttl, log: log}
}

// =============================================================================
// Methods
// =============================================================================

// Load returns the user's conversation set.
//
// # Description
//
// A missing record (never written, or expired) yields an empty set, not an
// error. A record that fails to decode is treated the same way: the
// corruption is logged and the user starts fresh rather than losing read
// access to the API.
//
// # Outputs
//
//   - datatypes.ConversationSet: Never nil
//   - error: Non-nil only for engine-level read failures
func (s *ConversationStore) Load(ctx context.Context, userID string) (datatypes.ConversationSet, error) {
	set := datatypes.ConversationSet{}

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(historyKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &set); err != nil {
				s.log.Warn("corrupt conversation record, starting fresh",
					"user_id", userID,
					"error", err,
				)
				set = datatypes.ConversationSet{}
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load conversations for %s: %w", userID, err)
	}
	return set, nil
}

// Save writes the user's conversation set and refreshes its TTL.
func (s *ConversationStore) Save(ctx context.Context, userID string, set datatypes.ConversationSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode conversations for %s: %w", userID, err)
	}

	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry(historyKey(userID), payload).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("save conversations for %s: %w", userID, err)
	}
	return nil
}

// DeleteChat removes one conversation from the user's record.
//
// # Description
//
// Loads the record, drops the chat, and writes the record back (refreshing
// the TTL). Deleting a chat that does not exist, or a record that does not
// exist, succeeds; delete is idempotent.
func (s *ConversationStore) DeleteChat(ctx context.Context, userID, chatID string) error {
	set, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := set[chatID]; !ok {
		return nil
	}
	delete(set, chatID)
	return s.Save(ctx, userID, set)
}

// historyKey builds the record key for a user.
func historyKey(userID string) []byte {
	return []byte(historyKeyPrefix + userID)
}
