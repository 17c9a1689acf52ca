package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/internal/statement/usecase"

	"github.com/gin-gonic/gin"
)

// ErrUnknownMessage is returned for envelopes with an unsupported type
var ErrUnknownMessage = errors.New("unknown message type")

// Message types accepted by POST /api/messages
const (
	MessageEmailData           = "emailData"
	MessageProcessEmailInPopup = "processEmailInPopup"
	MessageGetEmailData        = "getEmailData"
)

// StatementService is the pipeline as seen by the HTTP layer
type StatementService interface {
	ProcessDueEmail(ctx context.Context, email domain.RawEmail) usecase.RunReport
	ProcessSuccessEmail(ctx context.Context, email domain.RawEmail) usecase.RunReport
	ScanDueEmails(ctx context.Context) (*usecase.RunReport, error)
	ScanSuccessEmails(ctx context.Context) (*usecase.RunReport, error)
	ListSummaries(ctx context.Context) ([]domain.StatementSummary, error)
}

// MessageEnvelope is a typed request from a client
type MessageEnvelope struct {
	Type    string          `json:"type" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// EmailDataPayload carries an email the client read itself
type EmailDataPayload struct {
	domain.RawEmail
	// Flow is "due" (default) or "success"
	Flow string `json:"flow"`
}

// ScanResult is the outcome of one scan in a processEmailInPopup reply
type ScanResult struct {
	Report *usecase.RunReport `json:"report,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// StatementHandler handles statement API endpoints
type StatementHandler struct {
	service StatementService
}

// NewStatementHandler creates a new StatementHandler
func NewStatementHandler(service StatementService) *StatementHandler {
	return &StatementHandler{service: service}
}

// POST /api/messages
// HandleMessage dispatches a typed envelope
func (h *StatementHandler) HandleMessage(c *gin.Context) {
	var env MessageEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch env.Type {
	case MessageEmailData:
		h.emailData(c, env.Payload)
	case MessageProcessEmailInPopup:
		h.processEmailInPopup(c)
	case MessageGetEmailData:
		h.ListSummaries(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%v: %q", ErrUnknownMessage, env.Type)})
	}
}

func (h *StatementHandler) emailData(c *gin.Context, raw json.RawMessage) {
	var payload EmailDataPayload
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required"})
		return
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}
	if strings.TrimSpace(payload.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email body is required"})
		return
	}

	ctx := runContext(c)
	var report usecase.RunReport
	switch usecase.Flow(payload.Flow) {
	case "", usecase.FlowDue:
		report = h.service.ProcessDueEmail(ctx, payload.RawEmail)
	case usecase.FlowSuccess:
		report = h.service.ProcessSuccessEmail(ctx, payload.RawEmail)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown flow %q", payload.Flow)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (h *StatementHandler) processEmailInPopup(c *gin.Context) {
	ctx := runContext(c)

	var due, success ScanResult
	if report, err := h.service.ScanDueEmails(ctx); err != nil {
		due.Error = err.Error()
	} else {
		due.Report = report
	}
	if report, err := h.service.ScanSuccessEmails(ctx); err != nil {
		success.Error = err.Error()
	} else {
		success.Report = report
	}

	c.JSON(http.StatusOK, gin.H{"due": due, "success": success})
}

// runContext keeps request values but outlives the client: a run started
// over HTTP finishes even if the caller disconnects.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// GET /api/summaries
// ListSummaries returns every stored statement
func (h *StatementHandler) ListSummaries(c *gin.Context) {
	summaries, err := h.service.ListSummaries(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load summaries"})
		return
	}
	if summaries == nil {
		summaries = []domain.StatementSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}
