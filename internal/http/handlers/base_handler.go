// README: Base handler utilities (JSON helpers, caller checks, error mapping).
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tenkap/internal/http/middleware"
	"tenkap/internal/modules/engagement"
	"tenkap/internal/modules/location"
	"tenkap/internal/modules/matching"
	"tenkap/internal/modules/notify"
	"tenkap/internal/modules/nudge"
	"tenkap/internal/modules/spots"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts Firebase-style UIDs: up to 128 letters, digits, '-' or '_'.
func isValidID(v string) bool {
	if v == "" || len(v) > 128 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// callerMayActAs reports whether the authenticated caller may act for id.
// With auth disabled there is no caller and every request passes.
func callerMayActAs(c *gin.Context, id string) bool {
	uid := middleware.CallerUID(c)
	return uid == "" || uid == id
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, nudge.ErrInvalidInput),
		errors.Is(err, matching.ErrBadRequest),
		errors.Is(err, location.ErrBadRequest),
		errors.Is(err, spots.ErrBadRequest),
		errors.Is(err, engagement.ErrInvalidUser),
		errors.Is(err, notify.ErrNoDeviceToken):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, matching.ErrProfileNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "timeout")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
