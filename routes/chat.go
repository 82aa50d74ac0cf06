package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat-platform/middleware"
	"ragchat-platform/models"
	"ragchat-platform/services"
	"ragchat-platform/utils"
)

// SetupChatRoutes wires session management and messaging endpoints.
// Responses are generated asynchronously; clients poll the transcript
// for the assistant reply.
func SetupChatRoutes(router *gin.Engine, chat *services.ChatService, catalog *services.Catalog) {
	group := router.Group("/chat")
	group.Use(middleware.IdentityMiddleware())

	group.GET("/models", func(c *gin.Context) {
		list, err := catalog.ListLlmModels(c.Request.Context())
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"models": list})
	})

	group.POST("/sessions", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req models.CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		session, err := chat.CreateSession(c.Request.Context(), userID, &req)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	})

	group.GET("/sessions", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		sessions, err := chat.ListSessions(c.Request.Context(), userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
	})

	group.GET("/sessions/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		session, err := chat.GetSession(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	})

	group.PATCH("/sessions/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req models.UpdateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if req.Title == nil && req.VectorStoreID == nil {
			utils.RespondWithBadRequest(c, "Nothing to update", nil)
			return
		}

		if err := chat.UpdateSession(c.Request.Context(), userID, c.Param("id"), &req); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Session updated"})
	})

	group.DELETE("/sessions/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if err := chat.DeleteSession(c.Request.Context(), userID, c.Param("id")); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
	})

	group.GET("/sessions/:id/messages", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		messages, err := chat.Messages(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
	})

	group.POST("/sessions/:id/messages", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req models.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		message, err := chat.SendMessage(c.Request.Context(), userID, c.Param("id"), &req)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, message)
	})
}
