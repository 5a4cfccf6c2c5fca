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

type ConstraintHandler struct {
	service   constraint.Service
	logger    *logger.Logger
	validator *validator.Validator
}

func NewConstraintHandler(service constraint.Service, log *logger.Logger, val *validator.Validator) *ConstraintHandler {
	return &ConstraintHandler{service: service, logger: log, validator: val}
}

// List returns constraints
// @Summary List constraints
// @Tags Constraints
// @Produce json
// @Param category query string false "Filter by category"
// @Param scope query string false "Filter by scope"
// @Param active query bool false "Only active constraints"
// @Success 200 {array} constraint.Constraint
// @Failure 500 {object} utils.ErrorResponse "Internal server error"
// @Router /toc/constraints [get]
func (h *ConstraintHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := constraint.Filter{
		Category:   r.URL.Query().Get("category"),
		Scope:      r.URL.Query().Get("scope"),
		ActiveOnly: utils.ParseBoolQuery(r, "active", false),
	}

	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "Failed to list constraints")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}

// Get returns a single constraint
// @Summary Get constraint by ID
// @Tags Constraints
// @Produce json
// @Param id path int true "Constraint ID"
// @Success 200 {object} constraint.Constraint
// @Failure 404 {object} utils.ErrorResponse "Constraint not found"
// @Router /toc/constraints/{id} [get]
func (h *ConstraintHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	c, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get constraint")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, c)
}

// Create authors a new constraint
// @Summary Create constraint
// @Description The rule is compiled before it is stored; unknown operators and malformed operands are rejected
// @Tags Constraints
// @Accept json
// @Produce json
// @Param request body dto.CreateConstraintRequest true "Constraint"
// @Success 201 {object} constraint.Constraint
// @Failure 400 {object} utils.ErrorResponse "Invalid rule or validation error"
// @Router /toc/constraints [post]
func (h *ConstraintHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateConstraintRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	c := &constraint.Constraint{
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Scope:         constraint.Scope(req.Scope),
		ScopeEntityID: req.ScopeEntityID,
		SeverityLevel: req.SeverityLevel,
		Priority:      req.Priority,
		IsActive:      req.IsActive == nil || *req.IsActive,
		Rule:          req.Rule.ToRule(),
	}

	created, err := h.service.Create(r.Context(), c)
	if err != nil {
		writeServiceError(w, err, "Failed to create constraint")
		return
	}
	middleware.AddLogField(w, "constraint_id", created.ID)
	utils.WriteSuccess(w, http.StatusCreated, created)
}

// Update edits a constraint and bumps its version
// @Summary Update constraint
// @Tags Constraints
// @Accept json
// @Produce json
// @Param id path int true "Constraint ID"
// @Param request body dto.UpdateConstraintRequest true "Fields to change"
// @Success 200 {object} constraint.Constraint
// @Failure 400 {object} utils.ErrorResponse "Invalid rule or validation error"
// @Failure 404 {object} utils.ErrorResponse "Constraint not found"
// @Router /toc/constraints/{id} [put]
func (h *ConstraintHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.UpdateConstraintRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	updated, err := h.service.Update(r.Context(), id, req.Updates())
	if err != nil {
		writeServiceError(w, err, "Failed to update constraint")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, updated)
}

// Delete soft-deletes a constraint
// @Summary Deactivate constraint
// @Tags Constraints
// @Param id path int true "Constraint ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse "Constraint not found"
// @Router /toc/constraints/{id} [delete]
func (h *ConstraintHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	if err := h.service.Deactivate(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to deactivate constraint")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Constraint deactivated", nil)
}

// Evaluate checks an entity snapshot against every applicable constraint
// @Summary Evaluate constraints
// @Tags Constraints
// @Accept json
// @Produce json
// @Param request body dto.EvaluateRequest true "Entity snapshot"
// @Success 200 {object} dto.EvaluateResponse
// @Failure 400 {object} utils.ErrorResponse "Broken rule or validation error"
// @Router /toc/evaluate [post]
func (h *ConstraintHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req dto.EvaluateRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	violations, err := h.service.Evaluate(r.Context(), req.EntityType, req.EntityID, req.Data)
	if err != nil {
		writeServiceError(w, err, "Failed to evaluate constraints")
		return
	}

	middleware.AddLogField(w, "violations", len(violations))
	utils.WriteSuccess(w, http.StatusOK, dto.EvaluateResponse{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Violations: violations,
		Count:      len(violations),
	})
}

// ListExceptions returns the exceptions of a constraint
// @Summary List constraint exceptions
// @Tags Constraints
// @Produce json
// @Param id path int true "Constraint ID"
// @Success 200 {array} constraint.Exception
// @Router /toc/constraints/{id}/exceptions [get]
func (h *ConstraintHandler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	items, err := h.service.ListExceptions(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to list exceptions")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, items)
}

// CreateException waives a constraint for an entity inside a time window
// @Summary Create constraint exception
// @Tags Constraints
// @Accept json
// @Produce json
// @Param id path int true "Constraint ID"
// @Param request body dto.CreateExceptionRequest true "Exception"
// @Success 201 {object} constraint.Exception
// @Failure 400 {object} utils.ErrorResponse "Validation error"
// @Failure 404 {object} utils.ErrorResponse "Constraint not found"
// @Router /toc/constraints/{id}/exceptions [post]
func (h *ConstraintHandler) CreateException(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "id")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	var req dto.CreateExceptionRequest
	if appErr := decode(r, h.validator, &req); appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	e := &constraint.Exception{
		ConstraintID: id,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		Reason:       req.Reason,
		ApprovedBy:   req.ApprovedBy,
		ValidUntil:   req.ValidUntil,
	}
	if req.ValidFrom != nil {
		e.ValidFrom = req.ValidFrom.UTC()
	}

	created, err := h.service.CreateException(r.Context(), e)
	if err != nil {
		writeServiceError(w, err, "Failed to create exception")
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, created)
}

// DeactivateException switches an exception off
// @Summary Deactivate constraint exception
// @Tags Constraints
// @Param exceptionId path int true "Exception ID"
// @Success 200 {object} utils.SuccessResponse
// @Failure 404 {object} utils.ErrorResponse "Exception not found"
// @Router /toc/exceptions/{exceptionId} [delete]
func (h *ConstraintHandler) DeactivateException(w http.ResponseWriter, r *http.Request) {
	id, appErr := parseID(r, "exceptionId")
	if appErr != nil {
		utils.WriteError(w, appErr)
		return
	}

	if err := h.service.DeactivateException(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to deactivate exception")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Exception deactivated", nil)
}
