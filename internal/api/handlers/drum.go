package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/tocguard/internal/api/dto"
	"github.com/pratik-mahalle/tocguard/internal/api/middleware"
	"github.com/pratik-mahalle/tocguard/internal/domain/drum"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/utils"
	"github.com/pratik-mahalle/tocguard/internal/pkg/validator"
)

type DrumHandler struct {
	service   drum.Service
	logger    *logger.Logger
	validator *validator.Validator
}

func NewDrumHandler(service drum.Service, log *logger.Logger, val *validator.Validator) *DrumHandler {
	return &DrumHandler{service: service, logger: log, validator: val}
}

// Analyze runs a batch drum analysis
// @Summary Run drum analysis
// @Description Scores every resource and applies automated designation changes
// @Tags Drums
// @Produce json
// @Success 200 {object} drum.AnalysisResult
// @Router /toc/drums/analyze [post]
func (h *DrumHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.AnalyzeAll(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to analyse drums")
		return
	}
	middleware.AddLogField(w, "designations_updated", result.Updated)
	utils.WriteSuccess(w, http.StatusOK, result)
}

// List returns the current drums
// @Summary List drums
// @Tags Drums
// @Produce json
// @Success 200 {array} drum.Resource
// @Router /toc/drums [get]
func (h *DrumHandler) List(w http.ResponseWriter, r *http.Request) {
	drums, err := h.service.ListDrums(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to list drums")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, drums)
}

// History returns recent analysis ledger entries
// @Summary Drum analysis history
// @Tags Drums
// @Produce json
// @Param limit query int false "Maximum rows (default 50)"
// @Success 200 {array} drum.AnalysisHistory
// @Router /toc/drums/history [get]
func (h *DrumHandler) History(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListHistory(r.Context(), utils.ParseLimit(r))
	if err != nil {
		writeServiceError(w, err, "Failed to list drum history")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}

// Designate marks a resource as a drum
// @Summary Designate drum
// @Tags Drums
// @Accept json
// @Produce json
// @Param id path int true "Resource ID"
// @Param request body dto.DesignateDrumRequest false "Designation"
// @Success 200 {object} drum.Resource
// @Failure 404 {object} utils.ErrorResponse "Resource not found"
// @Router /toc/resources/{id}/drum [post]
func (h *DrumHandler) Designate(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.DesignateDrumRequest
	if r.ContentLength != 0 {
		if appErr := decode(r, h.validator, &req); appErr != nil {
			utils.WriteError(w, appErr)
			return
		}
	}

	res, err := h.service.Designate(r.Context(), id, req.DrumType, req.Reason, actorFrom(r, req.UserID))
	if err != nil {
		writeServiceError(w, err, "Failed to designate drum")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, res)
}

// Clear removes a drum designation
// @Summary Clear drum
// @Tags Drums
// @Accept json
// @Produce json
// @Param id path int true "Resource ID"
// @Param request body dto.ClearDrumRequest false "Clearance"
// @Success 200 {object} drum.Resource
// @Failure 404 {object} utils.ErrorResponse "Resource not found"
// @Router /toc/resources/{id}/drum [delete]
func (h *DrumHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.ClearDrumRequest
	if r.ContentLength != 0 {
		if appErr := decode(r, h.validator, &req); appErr != nil {
			utils.WriteError(w, appErr)
			return
		}
	}

	res, err := h.service.Clear(r.Context(), id, req.Reason, actorFrom(r, req.UserID))
	if err != nil {
		writeServiceError(w, err, "Failed to clear drum")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, res)
}

// RegisterResource adds a resource the analyzer can score
// @Summary Register resource
// @Tags Resources
// @Accept json
// @Produce json
// @Param request body dto.RegisterResourceRequest true "Resource"
// @Success 201 {object} drum.Resource
// @Router /toc/resources [post]
func (h *DrumHandler) RegisterResource(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterResourceRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	res, err := h.service.RegisterResource(r.Context(), &drum.Resource{Name: req.Name})
	if err != nil {
		writeServiceError(w, err, "Failed to register resource")
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, res)
}

// RecordOperation appends utilization telemetry
// @Summary Record resource operation
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path int true "Resource ID"
// @Param request body dto.RecordOperationRequest true "Operation"
// @Success 201 {object} drum.Operation
// @Failure 404 {object} utils.ErrorResponse "Resource not found"
// @Router /toc/resources/{id}/operations [post]
func (h *DrumHandler) RecordOperation(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.RecordOperationRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	op := &drum.Operation{ResourceID: id, Name: req.Name, DurationMinutes: req.DurationMinutes}
	if req.PerformedAt != nil {
		op.PerformedAt = req.PerformedAt.UTC()
	}

	op, err := h.service.RecordOperation(r.Context(), op)
	if err != nil {
		writeServiceError(w, err, "Failed to record operation")
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, op)
}

// Utilization scores every resource without changing designations
// @Summary Resource utilization
// @Tags Resources
// @Produce json
// @Success 200 {array} drum.Recommendation
// @Router /toc/resources/utilization [get]
func (h *DrumHandler) Utilization(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListUtilization(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to score resources")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}
