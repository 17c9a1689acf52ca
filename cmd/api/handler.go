package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	authDelivery "billwatch-backend/internal/auth/delivery"
	authRepo "billwatch-backend/internal/auth/repository"
	authUsecase "billwatch-backend/internal/auth/usecase"
	"billwatch-backend/internal/bridge"
	"billwatch-backend/internal/scheduler"
	statementDelivery "billwatch-backend/internal/statement/delivery"
	"billwatch-backend/pkg/ai"
	"billwatch-backend/pkg/config"
	"billwatch-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

// Handler owns the HTTP surface of the service
type Handler struct {
	authUsecase      authUsecase.AuthUsecase
	sseManager       *sse.Manager
	config           *config.Config
	statementHandler *statementDelivery.StatementHandler
	bridgeHandler    *bridge.Handler
	deviceHandler    *authDelivery.DeviceHandler
	settingsHandler  *SettingsHandler
	scheduler        *scheduler.Scheduler

	server *http.Server
}

// Dependencies groups what the HTTP layer needs from main
type Dependencies struct {
	AuthUsecase authUsecase.AuthUsecase
	SSEManager  *sse.Manager
	Config      *config.Config
	Statements  statementDelivery.StatementService
	Completer   *bridge.Completer
	DeviceRepo  authRepo.DeviceTokenRepository
	Settings    *RuntimeSettings
	Engine      ai.CompletionService
	Scheduler   *scheduler.Scheduler
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		authUsecase:      deps.AuthUsecase,
		sseManager:       deps.SSEManager,
		config:           deps.Config,
		statementHandler: statementDelivery.NewStatementHandler(deps.Statements),
		bridgeHandler:    bridge.NewHandler(deps.SSEManager, deps.Completer),
		deviceHandler:    authDelivery.NewDeviceHandler(deps.DeviceRepo),
		settingsHandler:  NewSettingsHandler(deps.Settings, deps.Engine),
		scheduler:        deps.Scheduler,
	}
}

// Router builds the gin engine with CORS and every route
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)
	return r
}

// Start serves HTTP on addr until Shutdown is called
func (h *Handler) Start(addr string) error {
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully
func (h *Handler) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// FireTrigger runs a scheduler trigger on demand
// POST /api/triggers/:name
func (h *Handler) FireTrigger(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return
	}

	// The job runs to completion even if the caller disconnects
	name := c.Param("name")
	err := h.scheduler.Fire(context.WithoutCancel(c.Request.Context()), name)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"trigger": name, "status": "done"})
	case errors.Is(err, scheduler.ErrUnknownTrigger):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "triggers": h.scheduler.Names()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"trigger": name, "error": err.Error()})
	}
}

// ListTriggers returns the registered triggers and their next run
// GET /api/triggers
func (h *Handler) ListTriggers(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusOK, gin.H{"triggers": []gin.H{}})
		return
	}

	names := h.scheduler.Names()
	triggers := make([]gin.H, 0, len(names))
	for _, name := range names {
		triggers = append(triggers, gin.H{"name": name, "next": h.scheduler.Next(name)})
	}
	c.JSON(http.StatusOK, gin.H{"triggers": triggers})
}
