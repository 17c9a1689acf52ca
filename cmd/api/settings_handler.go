package api

import (
	"net/http"
	"strings"
	"sync"

	"billwatch-backend/pkg/ai"

	"github.com/gin-gonic/gin"
)

// RuntimeConfig holds runtime-configurable engine settings
type RuntimeConfig struct {
	Provider      string `json:"provider"`
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// RuntimeSettings guards the engine settings that can change while running
type RuntimeSettings struct {
	mu     sync.RWMutex
	config RuntimeConfig
}

// NewRuntimeSettings initializes runtime config from static config
func NewRuntimeSettings(provider, ollamaBaseURL, ollamaModel string) *RuntimeSettings {
	return &RuntimeSettings{config: RuntimeConfig{
		Provider:      provider,
		OllamaBaseURL: ollamaBaseURL,
		OllamaModel:   ollamaModel,
	}}
}

// Snapshot returns a copy of the current settings
func (s *RuntimeSettings) Snapshot() RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// OllamaBaseURL returns the current runtime Ollama base URL
func (s *RuntimeSettings) OllamaBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.OllamaBaseURL
}

// OllamaModel returns the current runtime Ollama model
func (s *RuntimeSettings) OllamaModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.OllamaModel
}

func (s *RuntimeSettings) updateOllama(baseURL, model string) RuntimeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.OllamaBaseURL = strings.TrimRight(baseURL, "/")
	if model != "" {
		s.config.OllamaModel = model
	}
	return s.config
}

// SettingsHandler exposes the engine settings
type SettingsHandler struct {
	settings *RuntimeSettings
	engine   ai.CompletionService
}

// NewSettingsHandler creates a new settings handler. engine is the
// background engine reading its settings from settings.
func NewSettingsHandler(settings *RuntimeSettings, engine ai.CompletionService) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		engine:   engine,
	}
}

// UpdateEngineSettingsRequest represents the request body for updating engine settings
type UpdateEngineSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GetEngineSettings returns current engine configuration
// GET /api/settings/engine
func (h *SettingsHandler) GetEngineSettings(c *gin.Context) {
	cfg := h.settings.Snapshot()
	resp := gin.H{
		"provider":        cfg.Provider,
		"ollama_base_url": cfg.OllamaBaseURL,
		"ollama_model":    cfg.OllamaModel,
	}
	if h.engine != nil {
		resp["engine"] = h.engine.Name()
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateEngineSettings updates engine configuration at runtime
// PUT /api/settings/engine
func (h *SettingsHandler) UpdateEngineSettings(c *gin.Context) {
	var req UpdateEngineSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := h.settings.updateOllama(req.OllamaBaseURL, req.OllamaModel)
	c.JSON(http.StatusOK, gin.H{
		"message":         "Engine settings updated successfully",
		"ollama_base_url": cfg.OllamaBaseURL,
		"ollama_model":    cfg.OllamaModel,
	})
}

// TestEngineConnection checks whether an engine answers. With an
// ollama_base_url in the body that server is probed; otherwise the current
// background engine is.
// POST /api/settings/engine/test
func (h *SettingsHandler) TestEngineConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
		OllamaModel   string `json:"ollama_model"`
	}
	// An empty body tests the current engine
	_ = c.ShouldBindJSON(&req)

	engine := h.engine
	if req.OllamaBaseURL != "" {
		model := req.OllamaModel
		if model == "" {
			model = h.settings.OllamaModel()
		}
		engine = ai.NewOllamaService(strings.TrimRight(req.OllamaBaseURL, "/"), model)
	}
	if engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"connected": false, "error": "no engine configured"})
		return
	}

	if !engine.Ready(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"engine":    engine.Name(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected": true,
		"engine":    engine.Name(),
	})
}
