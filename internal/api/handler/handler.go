// Package handler provides HTTP handlers for the API.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reviewpilot/reviewpilot/pkg/errors"
)

// Pagination limits
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// parsePagination reads limit and offset query parameters with bounds
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// parseMRIID parses a merge request iid parameter
func parseMRIID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// respondError writes a JSON error response with the given status
func respondError(c *gin.Context, status int, code errors.ErrorCode, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// respondAppError writes an AppError using its mapped HTTP status, and
// falls back to an internal error for anything else.
func respondAppError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		respondError(c, appErr.HTTPStatus(), appErr.Code, appErr.Message)
		return
	}
	respondError(c, 500, errors.ErrCodeInternal, "Internal server error")
}
