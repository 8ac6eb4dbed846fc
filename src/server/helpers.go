package server

import (
	"errors"
	"net/http"
	"strconv"

	"feed-observer/src/helpers"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------

// statusForError maps an error of the management surface to an HTTP status
func statusForError(err error) int {
	var stateErr *helpers.InvalidStateError
	if errors.As(err, &stateErr) {
		return http.StatusConflict
	}
	var authErr *helpers.AuthenticationError
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized
	}
	var remoteErr *helpers.RemoteCallError
	if errors.As(err, &remoteErr) {
		if remoteErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusServiceUnavailable
}

// -----------------------------------------------------------------------------

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// -----------------------------------------------------------------------------

func queryInt(c *gin.Context, key string, fallback, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return fallback
	}
	if v > max {
		return max
	}
	return v
}

// -----------------------------------------------------------------------------

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
