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

	"github.com/AleutianAI/williwaw/observability"
)

// ListConversations handles GET /api/conversations?userId=...
func ListConversations(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("userId")
		if userID == "" {
			countRequest(deps, observability.EndpointConversations, observability.StatusError)
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}

		set, err := deps.Store.Load(c.Request.Context(), userID)
		if err != nil {
			countRequest(deps, observability.EndpointConversations, observability.StatusError)
			deps.logger().Error("conversation list failed", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
			return
		}

		countRequest(deps, observability.EndpointConversations, observability.StatusSuccess)
		c.JSON(http.StatusOK, gin.H{"chats": set.Summaries()})
	}
}
