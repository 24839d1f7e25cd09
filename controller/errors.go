package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"convochat/model"
	"convochat/service"
)

// abortWithError answers with the status matching err. Unknown errors are
// logged and hidden behind a generic message.
func abortWithError(c *gin.Context, err error) {
	requestID := c.GetString("requestId")
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidOperation):
		logger.Warnf("[%s] Rejected request: %s", requestID, err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, model.ErrPermissionDenied):
		logger.Warnf("[%s] Permission denied: %s", requestID, err)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
	case errors.Is(err, service.ErrNotConfigured):
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "AI service not configured"})
	default:
		logger.Errorf("[%s] Request failed: %s", requestID, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return 0, false
	}
	return uint(id), true
}
