package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat-platform/middleware"
	"ragchat-platform/models"
	"ragchat-platform/services"
	"ragchat-platform/utils"
)

// SetupVectorStoreRoutes wires vector store instance management and
// document indexing endpoints.
func SetupVectorStoreRoutes(router *gin.Engine, vectors *services.VectorStoreManager, catalog *services.Catalog) {
	group := router.Group("/vector-stores")
	group.Use(middleware.IdentityMiddleware())

	group.GET("/providers", func(c *gin.Context) {
		providers, err := catalog.ListVectorStoreProviders(c.Request.Context())
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"providers": providers})
	})

	group.GET("/embedding-models", func(c *gin.Context) {
		list, err := catalog.ListEmbeddingModels(c.Request.Context())
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"embedding_models": list})
	})

	group.POST("", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req models.CreateVectorStoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		instance, err := vectors.CreateInstance(c.Request.Context(), userID, &req)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, instance)
	})

	group.GET("", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		list, err := vectors.ListInstances(c.Request.Context(), userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"vector_stores": list, "count": len(list)})
	})

	group.GET("/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		instance, err := vectors.GetInstance(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, instance)
	})

	group.DELETE("/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if err := vectors.DeleteInstance(c.Request.Context(), userID, c.Param("id")); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Vector store deleted"})
	})

	// Adding a document queues embedding and indexing; the instance
	// reports status indexing until the worker finishes.
	group.POST("/:id/documents", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req models.AddDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		if err := vectors.AddDocument(c.Request.Context(), userID, c.Param("id"), req.DocumentID); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Document queued for indexing"})
	})

	group.POST("/:id/documents/:docId/reindex", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if err := vectors.QueueDocumentIndexing(c.Request.Context(), userID, c.Param("id"), c.Param("docId")); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Document queued for indexing"})
	})
}
