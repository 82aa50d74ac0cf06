package routes

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ragchat-platform/services"
	"ragchat-platform/utils"
)

// respondServiceError maps service layer errors onto HTTP responses.
// Ownership mismatches respond 404 so callers cannot probe for
// resources belonging to other users.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrOwnershipMismatch):
		utils.RespondWithNotFound(c, "Resource not found")
	case errors.Is(err, services.ErrDocumentNotReady):
		utils.RespondWithConflict(c, "Document has not finished processing")
	case errors.Is(err, services.ErrPermissionDenied):
		utils.RespondWithForbidden(c, "Operation not permitted")
	default:
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}
