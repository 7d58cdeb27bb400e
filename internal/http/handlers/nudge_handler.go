// README: Nudge handlers; select a nudge for a context and optionally push it.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tenkap/internal/modules/nudge"
)

type NudgeService interface {
	Decide(ctx context.Context, uc nudge.UserContext) (*nudge.Decision, error)
	DecideAndPush(ctx context.Context, uc nudge.UserContext, deviceToken string) (*nudge.Decision, string, error)
}

type NudgeHandler struct {
	nudges  NudgeService
	timeout time.Duration
}

// NewNudgeHandler bounds every selection by timeout; zero means no bound
// beyond the request's own context.
func NewNudgeHandler(svc NudgeService, timeout time.Duration) *NudgeHandler {
	return &NudgeHandler{nudges: svc, timeout: timeout}
}

type pushReq struct {
	Context     nudge.UserContext `json:"context"`
	DeviceToken string            `json:"device_token"`
}

type pushResp struct {
	Decision  *nudge.Decision `json:"decision"`
	MessageID string          `json:"message_id"`
}

// Select returns the chosen nudge, or 204 when there is none.
func (h *NudgeHandler) Select(c *gin.Context) {
	var uc nudge.UserContext
	if err := c.ShouldBindJSON(&uc); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(string(uc.UserID)) {
		writeError(c, http.StatusBadRequest, "missing user_id")
		return
	}
	if !callerMayActAs(c, string(uc.UserID)) {
		writeError(c, http.StatusForbidden, "forbidden: user_id does not match authenticated user")
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()
	d, err := h.nudges.Decide(ctx, uc)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if d == nil {
		c.Status(http.StatusNoContent)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

// Push selects a nudge and delivers it to the device.
func (h *NudgeHandler) Push(c *gin.Context) {
	var req pushReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	uid := string(req.Context.UserID)
	if !isValidID(uid) || req.DeviceToken == "" {
		writeError(c, http.StatusBadRequest, "context.user_id and device_token are required")
		return
	}
	if !callerMayActAs(c, uid) {
		writeError(c, http.StatusForbidden, "forbidden: user_id does not match authenticated user")
		return
	}

	ctx, cancel := h.withTimeout(c)
	defer cancel()
	d, id, err := h.nudges.DecideAndPush(ctx, req.Context, req.DeviceToken)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if d == nil {
		c.Status(http.StatusNoContent)
		return
	}
	writeJSON(c, http.StatusOK, pushResp{Decision: d, MessageID: id})
}

func (h *NudgeHandler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}
