package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/tocguard/internal/api/dto"
	"github.com/pratik-mahalle/tocguard/internal/api/middleware"
	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/utils"
	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
)

type ViolationHandler struct {
	service   constraint.Service
	logger    *logger.Logger
	validator *validator.Validator
}

func NewViolationHandler(service constraint.Service, log *logger.Logger, val *validator.Validator) *ViolationHandler {
	return &ViolationHandler{service: service, logger: log, validator: val}
}

// List returns violations
// @Summary List violations
// @Tags Violations
// @Produce json
// @Param constraint_id query int false "Filter by constraint"
// @Param entity_type query string false "Filter by entity type"
// @Param entity_id query int false "Filter by entity"
// @Param severity query string false "Filter by severity"
// @Param status query string false "Filter by status"
// @Success 200 {array} constraint.Violation
// @Router /toc/violations [get]
func (h *ViolationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := constraint.ViolationFilter{
		ConstraintID: utils.ParseInt64Query(r, "constraint_id"),
		EntityType:   q.Get("entity_type"),
		EntityID:     utils.ParseInt64Query(r, "entity_id"),
		Severity:     q.Get("severity"),
		Status:       q.Get("status"),
	}

	items, err := h.service.ListViolations(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "Failed to list violations")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}

// Get returns one violation
// @Summary Get violation by ID
// @Tags Violations
// @Produce json
// @Param id path int true "Violation ID"
// @Success 200 {object} constraint.Violation
// @Failure 404 {object} utils.ErrorResponse "Violation not found"
// @Router /toc/violations/{id} [get]
func (h *ViolationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	v, err := h.service.GetViolation(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get violation")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, v)
}

// GetSummary counts violations by severity and status
// @Summary Violation summary
// @Tags Violations
// @Produce json
// @Success 200 {object} constraint.Summary
// @Router /toc/violations/summary [get]
func (h *ViolationHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetSummary(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to summarise violations")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, summary)
}

// Resolve closes an open violation
// @Summary Resolve violation
// @Tags Violations
// @Accept json
// @Produce json
// @Param id path int true "Violation ID"
// @Param request body dto.ResolveViolationRequest true "Resolution"
// @Success 200 {object} constraint.Violation
// @Failure 404 {object} utils.ErrorResponse "Violation not found"
// @Failure 409 {object} utils.ErrorResponse "Violation is not open"
// @Router /toc/violations/{id}/resolve [post]
func (h *ViolationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.ResolveViolationRequest
	req.ResolvedBy = r.Header.Get(middleware.UserIDHeader)
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	v, err := h.service.Resolve(r.Context(), id, req.Resolution, req.ResolvedBy)
	if err != nil {
		writeServiceError(w, err, "Failed to resolve violation")
		return
	}
	middleware.AddLogField(w, "violation_id", id)
	utils.WriteSuccess(w, http.StatusOK, v)
}

// Waive accepts an open violation without fixing it
// @Summary Waive violation
// @Tags Violations
// @Accept json
// @Produce json
// @Param id path int true "Violation ID"
// @Param request body dto.WaiveViolationRequest true "Waiver"
// @Success 200 {object} constraint.Violation
// @Failure 404 {object} utils.ErrorResponse "Violation not found"
// @Failure 409 {object} utils.ErrorResponse "Violation is not open"
// @Router /toc/violations/{id}/waive [post]
func (h *ViolationHandler) Waive(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.WaiveViolationRequest
	req.ApprovedBy = r.Header.Get(middleware.UserIDHeader)
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	v, err := h.service.Waive(r.Context(), id, req.Reason, req.ApprovedBy)
	if err != nil {
		writeServiceError(w, err, "Failed to waive violation")
		return
	}
	middleware.AddLogField(w, "violation_id", id)
	utils.WriteSuccess(w, http.StatusOK, v)
}
