package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/tocguard/internal/api/dto"
	"github.com/pratik-mahalle/tocguard/internal/api/middleware"
	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/utils"
	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
)

type BufferHandler struct {
	service   buffer.Service
	logger    *logger.Logger
	validator *validator.Validator
}

func NewBufferHandler(service buffer.Service, log *logger.Logger, val *validator.Validator) *BufferHandler {
	return &BufferHandler{service: service, logger: log, validator: val}
}

// List returns buffer definitions
// @Summary List buffers
// @Tags Buffers
// @Produce json
// @Param buffer_type query string false "time or stock"
// @Param buffer_category query string false "Filter by category"
// @Param active query bool false "Only active buffers"
// @Success 200 {array} buffer.Definition
// @Router /toc/buffers [get]
func (h *BufferHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := buffer.Filter{
		BufferType:     r.URL.Query().Get("buffer_type"),
		BufferCategory: r.URL.Query().Get("buffer_category"),
		ActiveOnly:     utils.ParseBoolQuery(r, "active", false),
	}

	items, err := h.service.ListDefinitions(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "Failed to list buffers")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}

// Get returns a buffer definition
// @Summary Get buffer by ID
// @Tags Buffers
// @Produce json
// @Param id path int true "Buffer ID"
// @Success 200 {object} buffer.Definition
// @Failure 404 {object} utils.ErrorResponse "Buffer not found"
// @Router /toc/buffers/{id} [get]
func (h *BufferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	d, err := h.service.GetDefinition(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get buffer")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, d)
}

// Create defines a new buffer
// @Summary Create buffer
// @Tags Buffers
// @Accept json
// @Produce json
// @Param request body dto.CreateBufferRequest true "Buffer definition"
// @Success 201 {object} buffer.Definition
// @Failure 400 {object} utils.ErrorResponse "Invalid geometry or validation error"
// @Router /toc/buffers [post]
func (h *BufferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBufferRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	created, err := h.service.CreateDefinition(r.Context(), req.ToDefinition())
	if err != nil {
		writeServiceError(w, err, "Failed to create buffer")
		return
	}
	middleware.AddLogField(w, "buffer_id", created.ID)
	utils.WriteSuccess(w, http.StatusCreated, created)
}

// Update edits a buffer definition
// @Summary Update buffer
// @Tags Buffers
// @Accept json
// @Produce json
// @Param id path int true "Buffer ID"
// @Param request body dto.UpdateBufferRequest true "Fields to change"
// @Success 200 {object} buffer.Definition
// @Failure 400 {object} utils.ErrorResponse "Invalid geometry or validation error"
// @Failure 404 {object} utils.ErrorResponse "Buffer not found"
// @Router /toc/buffers/{id} [put]
func (h *BufferHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.UpdateBufferRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	updated, err := h.service.UpdateDefinition(r.Context(), id, req.Updates())
	if err != nil {
		writeServiceError(w, err, "Failed to update buffer")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, updated)
}

// UpdateLevel records a new observed level
// @Summary Record buffer level
// @Description Classifies the level into a zone, computes penetration and consumption rate, and logs zone changes
// @Tags Buffers
// @Accept json
// @Produce json
// @Param id path int true "Buffer ID"
// @Param request body dto.UpdateLevelRequest true "Observed level"
// @Success 200 {object} buffer.Consumption
// @Failure 400 {object} utils.ErrorResponse "Invalid level or buffer configuration"
// @Failure 404 {object} utils.ErrorResponse "Buffer not found"
// @Router /toc/buffers/{id}/level [post]
func (h *BufferHandler) UpdateLevel(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.UpdateLevelRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	c, err := h.service.UpdateLevel(r.Context(), id, *req.Level, req.Consumer())
	if err != nil {
		writeServiceError(w, err, "Failed to update buffer level")
		return
	}
	middleware.AddLogField(w, "zone", c.CurrentZone)
	utils.WriteSuccess(w, http.StatusOK, c)
}

// Health analyses a buffer's recent behaviour
// @Summary Buffer health
// @Tags Buffers
// @Produce json
// @Param id path int true "Buffer ID"
// @Success 200 {object} buffer.Health
// @Failure 404 {object} utils.ErrorResponse "Buffer not found"
// @Router /toc/buffers/{id}/health [get]
func (h *BufferHandler) Health(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	health, err := h.service.AnalyzeHealth(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to analyse buffer health")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, health)
}

// Alerts lists buffers outside their green zone
// @Summary Buffer alerts
// @Tags Buffers
// @Produce json
// @Success 200 {array} buffer.Alert
// @Router /toc/buffers/alerts [get]
func (h *BufferHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.GetAlerts(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list buffer alerts")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, alerts)
}

// Consumptions returns recent observations, newest first
// @Summary Buffer observations
// @Tags Buffers
// @Produce json
// @Param id path int true "Buffer ID"
// @Param limit query int false "Maximum rows (default 50)"
// @Success 200 {array} buffer.Consumption
// @Router /toc/buffers/{id}/consumptions [get]
func (h *BufferHandler) Consumptions(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	items, err := h.service.ListConsumptions(r.Context(), id, utils.ParseLimit(r))
	if err != nil {
		writeServiceError(w, err, "Failed to list buffer observations")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}

// History returns recent zone changes, newest first
// @Summary Buffer zone history
// @Tags Buffers
// @Produce json
// @Param id path int true "Buffer ID"
// @Param limit query int false "Maximum rows (default 50)"
// @Success 200 {array} buffer.HistoryEvent
// @Router /toc/buffers/{id}/history [get]
func (h *BufferHandler) History(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	items, err := h.service.ListHistory(r.Context(), id, utils.ParseLimit(r))
	if err != nil {
		writeServiceError(w, err, "Failed to list buffer history")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}

// SetPolicy stores the replenishment policy of a buffer
// @Summary Set buffer policy
// @Tags Buffers
// @Accept json
// @Produce json
// @Param id path int true "Buffer ID"
// @Param request body dto.SetPolicyRequest true "Policy"
// @Success 200 {object} buffer.Policy
// @Failure 404 {object} utils.ErrorResponse "Buffer not found"
// @Router /toc/buffers/{id}/policy [put]
func (h *BufferHandler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.SetPolicyRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	p, err := h.service.SetPolicy(r.Context(), &buffer.Policy{
		BufferDefinitionID:          id,
		ReplenishmentRule:           req.ReplenishmentRule,
		ReplenishmentLeadTimeHours:  req.ReplenishmentLeadTimeHours,
		EmergencyPenetrationPercent: req.EmergencyPenetrationPercent,
		IsActive:                    req.IsActive == nil || *req.IsActive,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to set buffer policy")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, p)
}
