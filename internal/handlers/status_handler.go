package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
)

// StatusHandler reports application health and version
type StatusHandler struct {
	config    *common.Config
	startTime time.Time
	logger    arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(config *common.Config, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		config:    config,
		startTime: time.Now(),
		logger:    logger,
	}
}

// GetStatusHandler returns application status
// GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     common.GetVersion(),
		"environment": h.config.Environment,
		"uptime":      time.Since(h.startTime).Round(time.Second).String(),
		"goroutines":  common.GetGoroutineCount(),
	})
}
