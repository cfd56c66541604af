package http

import (
	"PURLS-Backend/internal/repository"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const version = "1.0.0"

// HealthHandler обработчик health checks
type HealthHandler struct {
	storage   repository.Storage
	processor ClickProcessor
	log       *zap.Logger
}

// NewHealthHandler создает новый health handler
func NewHealthHandler(storage repository.Storage, processor ClickProcessor, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		storage:   storage,
		processor: processor,
		log:       log,
	}
}

// HealthResponse структура ответа health check
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	DatabaseStatus string    `json:"database_status"`
	Uptime         string    `json:"uptime,omitempty"`
}

var startTime = time.Now()

// Health основной health check endpoint
//
//	@Summary	Health check
//	@Tags		Health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := h.storage.Ping(ctx); err != nil {
		dbStatus = "unhealthy"
		h.log.Error("database health check failed", zap.Error(err))
	}

	status := "healthy"
	statusCode := http.StatusOK
	if dbStatus == "unhealthy" {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	h.writeJSON(w, HealthResponse{
		Status:         status,
		Timestamp:      time.Now(),
		Version:        version,
		DatabaseStatus: dbStatus,
		Uptime:         time.Since(startTime).String(),
	}, statusCode)
}

// Ready readiness probe endpoint
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now(),
	}, http.StatusOK)
}

// Metrics uptime и состояние очереди аналитики
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": time.Since(startTime).Seconds(),
		"timestamp":      time.Now(),
		"version":        version,
	}
	if h.processor != nil {
		metrics["analytics"] = h.processor.GetStats()
	}

	h.writeJSON(w, metrics, http.StatusOK)
}

func (h *HealthHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode health response", zap.Error(err))
	}
}
