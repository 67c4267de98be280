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
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/williwaw/datatypes"
)

func TestListConversations_ReturnsSortedSummaries(t *testing.T) {
	deps := newTestDeps(t, nil)
	router := newHistoryRouter(deps)
	seedHistory(t, deps, "u1", datatypes.ConversationSet{
		"b": {Name: "Chat 2"},
		"a": {Name: "Chat 1"},
		"z": {Name: "Trip planning"},
	})

	w := doRequest(router, http.MethodGet, "/api/conversations?userId=u1")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Chats []datatypes.ConversationSummary `json:"chats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Chats, 3)
	assert.Equal(t, "Chat 1", resp.Chats[0].Name)
	assert.Equal(t, "Chat 2", resp.Chats[1].Name)
	assert.Equal(t, "Trip planning", resp.Chats[2].Name)
}

func TestListConversations_UnknownUserReturnsEmptyList(t *testing.T) {
	deps := newTestDeps(t, nil)
	router := newHistoryRouter(deps)

	w := doRequest(router, http.MethodGet, "/api/conversations?userId=nobody")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"chats":[]}`, w.Body.String())
}

func TestListConversations_MissingUserID(t *testing.T) {
	deps := newTestDeps(t, nil)
	router := newHistoryRouter(deps)

	w := doRequest(router, http.MethodGet, "/api/conversations")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
