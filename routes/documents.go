package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat-platform/middleware"
	"ragchat-platform/models"
	"ragchat-platform/services"
	"ragchat-platform/utils"
)

// SetupDocumentRoutes wires the document upload and lifecycle endpoints.
func SetupDocumentRoutes(router *gin.Engine, docs *services.DocumentService) {
	group := router.Group("/documents")
	group.Use(middleware.IdentityMiddleware())

	// Upload accepts a multipart PDF and queues processing. The
	// response returns immediately with status pending.
	group.POST("", func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "A file field is required", gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		title := c.PostForm("title")

		doc, err := docs.Upload(c.Request.Context(), userID, title, file, header)
		if err != nil {
			utils.RespondWithBadRequest(c, "Upload failed", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:       doc.ID,
			Title:    doc.Title,
			FileName: doc.FileName,
			Status:   doc.Status,
			Message:  "Document accepted for processing",
		})
	})

	group.GET("", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		list, err := docs.List(c.Request.Context(), userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": list, "count": len(list)})
	})

	group.GET("/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		doc, err := docs.Get(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	group.GET("/:id/status", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		status, err := docs.Status(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   status,
			"progress": status.ProgressPercentage(),
			"complete": status.IsCompleted(),
		})
	})

	group.GET("/:id/chunks", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		chunks, err := docs.Chunks(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chunks": chunks, "count": len(chunks)})
	})

	group.DELETE("/:id", func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if err := docs.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
	})
}
