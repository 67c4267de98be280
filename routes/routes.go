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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/williwaw/handlers"
)

// SetupRoutes wires the HTTP surface onto the router.
//
// uiDir may be "" to disable static asset serving (tests).
func SetupRoutes(router *gin.Engine, deps *handlers.Deps, uiDir string) {
	router.HandleMethodNotAllowed = true

	router.GET("/health", handlers.Health())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if uiDir != "" {
		router.StaticFS("/ui", http.Dir(uiDir))
		// Friendly redirects into the chat UI.
		router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/ui/chat.html")
		})
		router.GET("/chat", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/ui/chat.html")
		})
	}

	api := router.Group("/api")
	{
		api.POST("/chat", handlers.StampRequestStart(), handlers.ChatStreaming(deps))
		api.GET("/history", handlers.GetHistory(deps))
		api.DELETE("/history", handlers.DeleteHistory(deps))
		api.GET("/conversations", handlers.ListConversations(deps))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
}
