// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/williwaw/handlers"
	"github.com/AleutianAI/williwaw/storage"
	"github.com/AleutianAI/williwaw/tasks"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.OpenDB(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	deps := &handlers.Deps{
		Store:     storage.NewConversationStore(db, 0, nil),
		Scheduler: &tasks.SyncScheduler{},
	}
	router := gin.New()
	SetupRoutes(router, deps, "")
	return router
}

func serve(router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestSetupRoutes_Health(t *testing.T) {
	router := newTestRouter(t)

	w := serve(router, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSetupRoutes_Metrics(t *testing.T) {
	router := newTestRouter(t)

	w := serve(router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRoutes_UnknownPathIsJSON404(t *testing.T) {
	router := newTestRouter(t)

	w := serve(router, http.MethodGet, "/api/nope")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

func TestSetupRoutes_WrongMethodIsJSON405(t *testing.T) {
	router := newTestRouter(t)

	w := serve(router, http.MethodPut, "/api/history")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"error":"method not allowed"}`, w.Body.String())
}

func TestSetupRoutes_NoUIRoutesWhenDisabled(t *testing.T) {
	router := newTestRouter(t)

	w := serve(router, http.MethodGet, "/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
