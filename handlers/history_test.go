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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/williwaw/datatypes"
)

func newHistoryRouter(deps *Deps) *gin.Engine {
	router := gin.New()
	router.GET("/api/history", GetHistory(deps))
	router.DELETE("/api/history", DeleteHistory(deps))
	router.GET("/api/conversations", ListConversations(deps))
	return router
}

func seedHistory(t *testing.T, deps *Deps, userID string, set datatypes.ConversationSet) {
	t.Helper()
	require.NoError(t, deps.Store.Save(context.Background(), userID, set))
}

func doRequest(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetHistory_ReturnsStoredMessages(t *testing.T) {
	deps := newTestDeps(t, nil)
	router := newHistoryRouter(deps)
	seedHistory(t, deps, "u1", datatypes.ConversationSet{
		"c1": {Name: "Chat 1", Messages: []datatypes.Message{
			{Role: datatypes.RoleSystem, Content: "sys"},
			{Role: datatypes.RoleUser, Content: "Hi"},
		}},
	})

	w := doRequest(router, http.MethodGet, "/api/history?userId=u1&chatId=c1")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		History []datatypes.Message `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.History, 2)
	assert.Equal(t, "Hi", resp.History[1].Content)
}

func TestGetHistory_UnknownChatReturnsEmptyArray(t *testing.T) {
	deps := newTestDeps(t, nil)
	router := newHistoryRouter(deps)

	w := doRequest(router, http.MethodGet, "/api/history?userId=nobody&chatId=c1")

	require.Equal(t, http.StatusOK, w.Code)
	// An empty list must serialize as [], not null.
	assert.JSONEq(t, `{"history":[]}`, w.Body.String())
}

func TestGetHistory_MissingParams(t *testing.T) {
	deps := newTestDeps(t, nil)
	router := newHistoryRouter(deps)

	for _, target := range []string{
		"/api/history",
		"/api/history?userId=u1",
		"/api/history?chatId=c1",
	} {
		w := doRequest(router, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestDeleteHistory_RemovesChat(t *testing.T) {
	deps := newTestDeps(t, nil)
	router := newHistoryRouter(deps)
	seedHistory(t, deps, "u1", datatypes.ConversationSet{
		"c1": {Name: "Chat 1"},
		"c2": {Name: "Chat 2"},
	})

	w := doRequest(router, http.MethodDelete, "/api/history?userId=u1&chatId=c1")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Chat deleted"}`, w.Body.String())

	set, err := deps.Store.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, set.Get("c1"))
	assert.NotNil(t, set.Get("c2"))
}

func TestDeleteHistory_UnknownChatIsSuccess(t *testing.T) {
	deps := newTestDeps(t, nil)
	router := newHistoryRouter(deps)

	w := doRequest(router, http.MethodDelete, "/api/history?userId=u1&chatId=never")
	assert.Equal(t, http.StatusOK, w.Code)

	// Deleting again changes nothing.
	w = doRequest(router, http.MethodDelete, "/api/history?userId=u1&chatId=never")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteHistory_MissingParams(t *testing.T) {
	deps := newTestDeps(t, nil)
	router := newHistoryRouter(deps)

	w := doRequest(router, http.MethodDelete, "/api/history?userId=u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
