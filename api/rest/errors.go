package rest

import (
	"net/http"

	"github.com/backline-app/server/errs"
	"github.com/gin-gonic/gin"
)

// writeError maps the engine's error taxonomy onto HTTP status codes.
// Store errors surface the raw driver message on purpose: the operators
// diagnosing a failed sync want the real cause, not a euphemism.
func writeError(c *gin.Context, err error) {
	switch {
	case errs.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errs.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errs.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errs.IsStore(err):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
