package bridge

import (
	"errors"
	"net/http"

	"billwatch-backend/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the foreground channel over HTTP
type Handler struct {
	manager   *sse.Manager
	completer *Completer
}

// NewHandler creates a new bridge handler
func NewHandler(manager *sse.Manager, completer *Completer) *Handler {
	return &Handler{
		manager:   manager,
		completer: completer,
	}
}

// Connect opens the event stream for a foreground session
func (h *Handler) Connect(c *gin.Context) {
	sessionID := c.Query("session")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	h.manager.ServeHTTP(c, sessionID)
}

// PostFragment receives a completion fragment for a pending request
func (h *Handler) PostFragment(c *gin.Context) {
	var f Fragment
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.completer.Deliver(c.Request.Context(), c.Param("id"), f)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, ErrUnknownRequest):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
