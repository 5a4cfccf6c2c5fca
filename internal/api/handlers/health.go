package handlers

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/utils"
	"github.com/pratik-mahalle/tocguard/internal/repository/postgres"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db         *postgres.DB
	migrations fs.FS
	logger     *logger.Logger
}

// NewHealthHandler creates a new health handler; migrations may be nil to
// skip the schema check
func NewHealthHandler(db *postgres.DB, migrations fs.FS, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:         db,
		migrations: migrations,
		logger:     log,
	}
}

// Healthz handles liveness probe
// @Summary Liveness probe
// @Description Check if the application is alive
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Application is alive"
// @Router /health [get]
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Readyz handles readiness probe
// @Summary Readiness probe
// @Description Check that the database answers and its schema is current
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Application is ready"
// @Failure 503 {object} utils.ErrorResponse "Service unavailable"
// @Router /ready [get]
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.ErrorWithErr(err, "Database ping failed")
		utils.WriteErrorMessage(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Database connection failed")
		return
	}

	if h.migrations != nil {
		pending, err := postgres.PendingMigrations(ctx, h.db, h.migrations)
		if err != nil {
			h.logger.ErrorWithErr(err, "Migration check failed")
			utils.WriteErrorMessage(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Migration check failed")
			return
		}
		if len(pending) > 0 {
			utils.WriteErrorMessage(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Database schema is out of date")
			return
		}
	}

	utils.WriteSuccess(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": h.db.Driver(),
	})
}
