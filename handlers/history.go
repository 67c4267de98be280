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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/williwaw/datatypes"
	"github.com/AleutianAI/williwaw/observability"
)

// GetHistory handles GET /api/history?userId=...&chatId=...
//
// Unknown users and unknown chats both return an empty message list; the
// client treats either as a fresh conversation.
func GetHistory(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("userId")
		chatID := c.Query("chatId")
		if userID == "" || chatID == "" {
			countRequest(deps, observability.EndpointHistory, observability.StatusError)
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId and chatId are required"})
			return
		}

		set, err := deps.Store.Load(c.Request.Context(), userID)
		if err != nil {
			countRequest(deps, observability.EndpointHistory, observability.StatusError)
			deps.logger().Error("history load failed", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}

		history := []datatypes.Message{}
		if conv := set.Get(chatID); conv != nil && conv.Messages != nil {
			history = conv.Messages
		}
		countRequest(deps, observability.EndpointHistory, observability.StatusSuccess)
		c.JSON(http.StatusOK, gin.H{"history": history})
	}
}

// DeleteHistory handles DELETE /api/history?userId=...&chatId=...
//
// Deleting a chat that never existed is a success; the observable state
// afterwards is identical.
func DeleteHistory(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("userId")
		chatID := c.Query("chatId")
		if userID == "" || chatID == "" {
			countRequest(deps, observability.EndpointHistory, observability.StatusError)
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId and chatId are required"})
			return
		}

		if err := deps.Store.DeleteChat(c.Request.Context(), userID, chatID); err != nil {
			countRequest(deps, observability.EndpointHistory, observability.StatusError)
			deps.logger().Error("chat delete failed",
				"user_id", userID,
				"chat_id", chatID,
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat"})
			return
		}

		countRequest(deps, observability.EndpointHistory, observability.StatusSuccess)
		c.JSON(http.StatusOK, gin.H{"message": "Chat deleted"})
	}
}
