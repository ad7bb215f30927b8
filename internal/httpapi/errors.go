package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jacentio/members/account"
	"github.com/jacentio/members/records"
)

// statusOf maps an account error to a response status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, records.ErrDuplicateValue),
		errors.Is(err, records.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, account.ErrValidationFailed),
		errors.Is(err, account.ErrInvalidCredential):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrUpstreamAssetFailure):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Internal failures are
// logged and reported without detail.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		msg = "internal error"
	}
	abort(c, status, msg)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
