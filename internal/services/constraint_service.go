package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/detector"
	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/metrics"
)

// ConstraintService implements constraint.Service
type ConstraintService struct {
	repo       constraint.Repository
	violations constraint.ViolationRepository
	exceptions constraint.ExceptionRepository
	fields     *detector.FieldRegistry
	cfg        config.TOCConfig
	logger     *logger.Logger
	now        func() time.Time
}

// NewConstraintService creates a new constraint service
func NewConstraintService(
	repo constraint.Repository,
	violations constraint.ViolationRepository,
	exceptions constraint.ExceptionRepository,
	fields *detector.FieldRegistry,
	cfg config.TOCConfig,
	log *logger.Logger,
) *ConstraintService {
	if fields == nil {
		fields = detector.NewFieldRegistry()
	}
	return &ConstraintService{
		repo:       repo,
		violations: violations,
		exceptions: exceptions,
		fields:     fields,
		cfg:        cfg,
		logger:     log.Component("constraint-evaluator"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// compiledConstraint pairs a constraint with its predicate and extractor
type compiledConstraint struct {
	constraint *constraint.Constraint
	predicate  detector.Predicate
	extract    detector.Extractor
}

func (s *ConstraintService) compile(c *constraint.Constraint, entityType string) (*compiledConstraint, error) {
	predicate, err := detector.CompileRule(c.Rule)
	if err != nil {
		return nil, err
	}
	extract, err := s.fields.Resolve(entityType, c.Rule.Field)
	if err != nil {
		return nil, err
	}
	return &compiledConstraint{constraint: c, predicate: predicate, extract: extract}, nil
}

// Create creates a new constraint after checking that its rule compiles
func (s *ConstraintService) Create(ctx context.Context, c *constraint.Constraint) (*constraint.Constraint, error) {
	applyConstraintDefaults(c)
	if err := s.validate(c); err != nil {
		return nil, err
	}

	c.Version = 1
	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.ErrorWithErr(err, "Failed to create constraint")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"constraint_id": c.ID,
		"name":          c.Name,
		"operator":      c.Rule.Operator,
		"scope":         c.Scope,
	}).Info("Constraint created")

	return c, nil
}

// GetByID retrieves a constraint by ID
func (s *ConstraintService) GetByID(ctx context.Context, id int64) (*constraint.Constraint, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies the updates, recompiles the rule and bumps the version
func (s *ConstraintService) Update(ctx context.Context, id int64, updates map[string]interface{}) (*constraint.Constraint, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if name, ok := updates["name"].(string); ok {
		c.Name = name
	}
	if description, ok := updates["description"].(string); ok {
		c.Description = description
	}
	if category, ok := updates["category"].(string); ok {
		c.Category = category
	}
	if scope, ok := updates["scope"].(string); ok {
		c.Scope = constraint.Scope(scope)
	}
	if scopeEntityID, ok := updates["scope_entity_id"].(int64); ok {
		c.ScopeEntityID = &scopeEntityID
	}
	if severity, ok := updates["severity_level"].(string); ok {
		c.SeverityLevel = severity
	}
	if priority, ok := updates["priority"].(string); ok {
		c.Priority = priority
	}
	if active, ok := updates["is_active"].(bool); ok {
		c.IsActive = active
	}
	if rule, ok := updates["rule"].(constraint.Rule); ok {
		c.Rule = rule
	}

	if err := s.validate(c); err != nil {
		return nil, err
	}

	c.Version++
	if err := s.repo.Update(ctx, c); err != nil {
		s.logger.ErrorWithErr(err, "Failed to update constraint")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"constraint_id": id,
		"version":       c.Version,
	}).Info("Constraint updated")

	return c, nil
}

// Deactivate soft-deletes a constraint; its violations stay in the ledger
func (s *ConstraintService) Deactivate(ctx context.Context, id int64) error {
	_, err := s.Update(ctx, id, map[string]interface{}{"is_active": false})
	return err
}

// List retrieves constraints with filters
func (s *ConstraintService) List(ctx context.Context, filter constraint.Filter) ([]*constraint.Constraint, error) {
	return s.repo.List(ctx, filter)
}

// Evaluate compiles every applicable rule before writing anything, so one
// broken rule fails the whole call without recording partial results
func (s *ConstraintService) Evaluate(ctx context.Context, entityType string, entityID int64, data map[string]interface{}) ([]*constraint.Violation, error) {
	if strings.TrimSpace(entityType) == "" {
		return nil, errors.ValidationError("entity type is required", map[string]string{"entity_type": "required"})
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	applicable, err := s.repo.GetApplicable(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	compiled := make([]*compiledConstraint, 0, len(applicable))
	for _, c := range applicable {
		// A global rule does not apply to a strict type that lacks its field
		if c.Scope == constraint.ScopeGlobal && s.fields.Excludes(entityType, c.Rule.Field) {
			s.logger.WithFields(map[string]interface{}{
				"constraint_id": c.ID,
				"entity_type":   entityType,
				"field":         c.Rule.Field,
			}).Debug("Global constraint skipped for entity type")
			continue
		}
		cc, err := s.compile(c, entityType)
		if err != nil {
			metrics.RecordEvaluation(entityType, "error")
			s.logger.WithFields(map[string]interface{}{
				"constraint_id": c.ID,
				"entity_type":   entityType,
				"entity_id":     entityID,
			}).ErrorWithErr(err, "Constraint rule cannot be evaluated")
			return nil, err
		}
		compiled = append(compiled, cc)
	}

	now := s.now()

	var exceptions []*constraint.Exception
	if s.cfg.ApplyExceptions && s.exceptions != nil {
		exceptions, err = s.exceptions.ListActive(ctx, entityType, entityID, now)
		if err != nil {
			return nil, err
		}
	}

	var breaches []*constraint.Violation
	for _, cc := range compiled {
		actual, present := cc.extract(data)
		if !cc.predicate.Violated(actual, present) {
			continue
		}
		if covered(exceptions, cc.constraint.ID, entityType, entityID, now) {
			s.logger.WithFields(map[string]interface{}{
				"constraint_id": cc.constraint.ID,
				"entity_type":   entityType,
				"entity_id":     entityID,
			}).Debug("Violation suppressed by exception")
			continue
		}

		actualText := detector.FormatValue(actual)
		breaches = append(breaches, &constraint.Violation{
			ConstraintID:      cc.constraint.ID,
			ConstraintName:    cc.constraint.Name,
			EntityType:        entityType,
			EntityID:          entityID,
			ActualValue:       actualText,
			ExpectedValue:     cc.predicate.Expected(),
			Severity:          constraint.DeriveSeverity(cc.constraint),
			ImpactDescription: impactDescription(cc.constraint, entityType, entityID, actualText, cc.predicate.Expected()),
			DetectedAt:        now,
		})
	}

	if len(breaches) > 0 {
		err = s.violations.WithinTx(ctx, func(ctx context.Context) error {
			for _, v := range breaches {
				if err := s.violations.UpsertOpen(ctx, v); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			metrics.RecordEvaluation(entityType, "error")
			s.logger.ErrorWithErr(err, "Failed to record violations")
			return nil, err
		}
	}

	outcome := "pass"
	if len(breaches) > 0 {
		outcome = "violated"
	}
	metrics.RecordEvaluation(entityType, outcome)
	for _, v := range breaches {
		metrics.RecordViolation(v.Severity)
	}

	s.logger.WithFields(map[string]interface{}{
		"entity_type": entityType,
		"entity_id":   entityID,
		"evaluated":   len(compiled),
		"violations":  len(breaches),
	}).Info("Constraints evaluated")

	if breaches == nil {
		breaches = []*constraint.Violation{}
	}
	return breaches, nil
}

// GetViolation retrieves one violation
func (s *ConstraintService) GetViolation(ctx context.Context, id int64) (*constraint.Violation, error) {
	return s.violations.GetByID(ctx, id)
}

// ListViolations retrieves violations with filters
func (s *ConstraintService) ListViolations(ctx context.Context, filter constraint.ViolationFilter) ([]*constraint.Violation, error) {
	return s.violations.List(ctx, filter)
}

// Resolve moves an open violation to resolved
func (s *ConstraintService) Resolve(ctx context.Context, id int64, resolution, resolvedBy string) (*constraint.Violation, error) {
	if strings.TrimSpace(resolution) == "" || strings.TrimSpace(resolvedBy) == "" {
		return nil, errors.ValidationError("resolution and resolved_by are required", nil)
	}
	return s.transition(ctx, id, constraint.Transition{
		Status: constraint.StatusResolved,
		Note:   resolution,
		Actor:  resolvedBy,
	})
}

// Waive moves an open violation to waived
func (s *ConstraintService) Waive(ctx context.Context, id int64, reason, approvedBy string) (*constraint.Violation, error) {
	if strings.TrimSpace(reason) == "" || strings.TrimSpace(approvedBy) == "" {
		return nil, errors.ValidationError("reason and approved_by are required", nil)
	}
	return s.transition(ctx, id, constraint.Transition{
		Status: constraint.StatusWaived,
		Note:   reason,
		Actor:  approvedBy,
	})
}

func (s *ConstraintService) transition(ctx context.Context, id int64, t constraint.Transition) (*constraint.Violation, error) {
	t.At = s.now()

	if err := s.violations.Transition(ctx, id, t); err != nil {
		if !errors.HasCode(err, errors.ErrCodeConflict) && !errors.HasCode(err, errors.ErrCodeNotFound) {
			s.logger.ErrorWithErr(err, "Failed to transition violation")
		}
		return nil, err
	}

	metrics.RecordViolationTransition(t.Status)
	s.logger.WithFields(map[string]interface{}{
		"violation_id": id,
		"status":       t.Status,
		"actor":        t.Actor,
	}).Info("Violation closed")

	return s.violations.GetByID(ctx, id)
}

// GetSummary recomputes the counts from the full ledger on every call
func (s *ConstraintService) GetSummary(ctx context.Context) (*constraint.Summary, error) {
	counts, err := s.violations.CountBySeverityAndStatus(ctx)
	if err != nil {
		return nil, err
	}

	summary := &constraint.Summary{}
	for severity, byStatus := range counts {
		for status, n := range byStatus {
			summary.Total += n

			switch severity {
			case constraint.SeverityCritical:
				summary.Critical += n
			case constraint.SeverityMajor:
				summary.Major += n
			case constraint.SeverityMinor:
				summary.Minor += n
			}

			switch status {
			case constraint.StatusOpen:
				summary.Open += n
			case constraint.StatusResolved:
				summary.Resolved += n
			case constraint.StatusWaived:
				summary.Waived += n
			}
		}
	}

	for _, severity := range []string{constraint.SeverityCritical, constraint.SeverityMajor, constraint.SeverityMinor} {
		metrics.SetOpenViolations(severity, float64(counts[severity][constraint.StatusOpen]))
	}

	return summary, nil
}

// CreateException records a waiver window for a constraint
func (s *ConstraintService) CreateException(ctx context.Context, e *constraint.Exception) (*constraint.Exception, error) {
	if _, err := s.repo.GetByID(ctx, e.ConstraintID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(e.EntityType) == "" || strings.TrimSpace(e.Reason) == "" || strings.TrimSpace(e.ApprovedBy) == "" {
		return nil, errors.ValidationError("entity_type, reason and approved_by are required", nil)
	}
	if e.ValidFrom.IsZero() {
		e.ValidFrom = s.now()
	}
	if e.ValidUntil != nil && e.ValidUntil.Before(e.ValidFrom) {
		return nil, errors.ValidationError("valid_until precedes valid_from", nil)
	}

	e.IsActive = true
	if err := s.exceptions.Create(ctx, e); err != nil {
		s.logger.ErrorWithErr(err, "Failed to create constraint exception")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"exception_id":  e.ID,
		"constraint_id": e.ConstraintID,
		"entity_type":   e.EntityType,
		"approved_by":   e.ApprovedBy,
	}).Info("Constraint exception created")

	return e, nil
}

// DeactivateException switches an exception off
func (s *ConstraintService) DeactivateException(ctx context.Context, id int64) error {
	if err := s.exceptions.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.With("exception_id", id).Info("Constraint exception deactivated")
	return nil
}

// ListExceptions lists the exceptions of a constraint
func (s *ConstraintService) ListExceptions(ctx context.Context, constraintID int64) ([]*constraint.Exception, error) {
	return s.exceptions.List(ctx, constraintID)
}

func (s *ConstraintService) validate(c *constraint.Constraint) error {
	details := map[string]string{}
	if strings.TrimSpace(c.Name) == "" {
		details["name"] = "required"
	}
	if !c.Scope.Valid() {
		details["scope"] = fmt.Sprintf("unknown scope %q", c.Scope)
	}
	if c.SeverityLevel != constraint.SeverityLevelHard && c.SeverityLevel != constraint.SeverityLevelSoft {
		details["severity_level"] = "must be hard or soft"
	}
	switch c.Priority {
	case constraint.PriorityHigh, constraint.PriorityMedium, constraint.PriorityLow:
	default:
		details["priority"] = "must be high, medium or low"
	}
	if len(details) > 0 {
		return errors.ValidationError("invalid constraint", details)
	}

	if !c.Rule.Operator.Valid() {
		return errors.UnknownOperator(string(c.Rule.Operator))
	}

	// Global rules can target any entity type, so only the path shape is checked
	entityType := string(c.Scope)
	if c.Scope == constraint.ScopeGlobal {
		entityType = ""
	}
	_, err := s.compile(c, entityType)
	return err
}

func applyConstraintDefaults(c *constraint.Constraint) {
	if c.Scope == "" {
		c.Scope = constraint.ScopeGlobal
	}
	if c.SeverityLevel == "" {
		c.SeverityLevel = constraint.SeverityLevelSoft
	}
	if c.Priority == "" {
		c.Priority = constraint.PriorityMedium
	}
	c.IsActive = true
}

func covered(exceptions []*constraint.Exception, constraintID int64, entityType string, entityID int64, at time.Time) bool {
	for _, e := range exceptions {
		if e.Covers(constraintID, entityType, entityID, at) {
			return true
		}
	}
	return false
}

func impactDescription(c *constraint.Constraint, entityType string, entityID int64, actual, expected string) string {
	return fmt.Sprintf("%s %d breaks %q: %s is %s, expected %s", entityType, entityID, c.Name, c.Rule.Field, actual, expected)
}
