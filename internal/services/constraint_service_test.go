package services

import (
	"context"
	"testing"
	"time"

	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/detector"
	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
	"github.com/pratik-mahalle/tocguard/internal/pkg/errors"
	"github.com/pratik-mahalle/tocguard/internal/testutil"
)

var _ constraint.Service = (*ConstraintService)(nil)

type constraintFixture struct {
	service    *ConstraintService
	repo       *testutil.MockConstraintRepository
	violations *testutil.MockViolationRepository
	exceptions *testutil.MockExceptionRepository
}

func newConstraintFixture(applyExceptions bool) *constraintFixture {
	f := &constraintFixture{
		repo:       testutil.NewMockConstraintRepository(),
		violations: testutil.NewMockViolationRepository(),
		exceptions: testutil.NewMockExceptionRepository(),
	}
	f.service = NewConstraintService(f.repo, f.violations, f.exceptions, detector.NewFieldRegistry(),
		config.TOCConfig{ApplyExceptions: applyExceptions}, testutil.NewTestLogger())
	return f
}

func capacityConstraint() *constraint.Constraint {
	return &constraint.Constraint{
		Name:          "Capacity ceiling",
		Category:      "capacity",
		SeverityLevel: constraint.SeverityLevelHard,
		Priority:      constraint.PriorityHigh,
		Rule:          constraint.Rule{Field: "capacity", Operator: constraint.OpLessThan, Value: 100},
	}
}

func TestConstraintService_Create(t *testing.T) {
	tests := []struct {
		name     string
		c        *constraint.Constraint
		wantErr  bool
		wantCode string
	}{
		{
			name:    "valid constraint",
			c:       capacityConstraint(),
			wantErr: false,
		},
		{
			name: "missing name",
			c: &constraint.Constraint{
				Rule: constraint.Rule{Field: "capacity", Operator: constraint.OpLessThan, Value: 100},
			},
			wantErr:  true,
			wantCode: errors.ErrCodeValidation,
		},
		{
			name: "unknown operator",
			c: &constraint.Constraint{
				Name: "Fuzzy match",
				Rule: constraint.Rule{Field: "status", Operator: "~", Value: "active"},
			},
			wantErr:  true,
			wantCode: errors.ErrCodeUnknownOperator,
		},
		{
			name: "between with inverted bounds",
			c: &constraint.Constraint{
				Name: "Load window",
				Rule: constraint.Rule{Field: "load", Operator: constraint.OpBetween, Value: []interface{}{10, 1}},
			},
			wantErr:  true,
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "in without list",
			c: &constraint.Constraint{
				Name: "Allowed shifts",
				Rule: constraint.Rule{Field: "shift", Operator: constraint.OpIn, Value: "day"},
			},
			wantErr:  true,
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "unknown scope",
			c: &constraint.Constraint{
				Name:  "Warehouse rule",
				Scope: "warehouse",
				Rule:  constraint.Rule{Field: "capacity", Operator: constraint.OpLessThan, Value: 100},
			},
			wantErr:  true,
			wantCode: errors.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConstraintFixture(true)
			created, err := f.service.Create(context.Background(), tt.c)

			if (err != nil) != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !errors.HasCode(err, tt.wantCode) {
					t.Errorf("Create() error = %v, want code %s", err, tt.wantCode)
				}
				if len(f.repo.Constraints) != 0 {
					t.Error("Create() stored a rejected constraint")
				}
				return
			}

			if created.ID == 0 {
				t.Error("Create() returned 0 id")
			}
			if created.Version != 1 {
				t.Errorf("Create() version = %d, want 1", created.Version)
			}
			if created.Scope != constraint.ScopeGlobal || !created.IsActive {
				t.Errorf("Create() defaults = scope %q active %v", created.Scope, created.IsActive)
			}
		})
	}
}

func TestConstraintService_CreateStrictField(t *testing.T) {
	f := newConstraintFixture(true)
	fields := detector.NewFieldRegistry()
	fields.Register("resource", "capacity", func(data map[string]interface{}) (interface{}, bool) {
		v, ok := data["capacity"]
		return v, ok
	})
	fields.Strict("resource")
	f.service.fields = fields

	c := capacityConstraint()
	c.Scope = constraint.ScopeResource
	if _, err := f.service.Create(context.Background(), c); err != nil {
		t.Fatalf("Create() registered field error = %v", err)
	}

	unknown := capacityConstraint()
	unknown.Scope = constraint.ScopeResource
	unknown.Rule.Field = "throughput"
	_, err := f.service.Create(context.Background(), unknown)
	if !errors.HasCode(err, errors.ErrCodeInvalidConfiguration) {
		t.Errorf("Create() unregistered field error = %v, want INVALID_CONFIGURATION", err)
	}
}

func TestConstraintService_Update(t *testing.T) {
	f := newConstraintFixture(true)
	ctx := context.Background()

	created, err := f.service.Create(ctx, capacityConstraint())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := f.service.Update(ctx, created.ID, map[string]interface{}{
		"name": "Capacity ceiling v2",
		"rule": constraint.Rule{Field: "capacity", Operator: constraint.OpLessOrEqual, Value: 120},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Update() version = %d, want 2", updated.Version)
	}
	if updated.Rule.Operator != constraint.OpLessOrEqual {
		t.Errorf("Update() operator = %s, want <=", updated.Rule.Operator)
	}

	_, err = f.service.Update(ctx, created.ID, map[string]interface{}{
		"rule": constraint.Rule{Field: "capacity", Operator: "like", Value: 1},
	})
	if !errors.HasCode(err, errors.ErrCodeUnknownOperator) {
		t.Errorf("Update() error = %v, want UNKNOWN_OPERATOR", err)
	}

	stored, _ := f.repo.GetByID(ctx, created.ID)
	if stored.Version != 2 {
		t.Errorf("rejected update changed version to %d", stored.Version)
	}

	if _, err := f.service.Update(ctx, 999, map[string]interface{}{"name": "x"}); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("Update() missing error = %v, want NOT_FOUND", err)
	}
}

func TestConstraintService_Deactivate(t *testing.T) {
	f := newConstraintFixture(true)
	ctx := context.Background()

	created, _ := f.service.Create(ctx, capacityConstraint())
	if err := f.service.Deactivate(ctx, created.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	violations, err := f.service.Evaluate(ctx, "resource", 1, map[string]interface{}{"capacity": 500})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("Evaluate() with inactive constraint returned %d violations", len(violations))
	}
}

func TestConstraintService_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]interface{}
		violations int
	}{
		{name: "within limit", data: map[string]interface{}{"capacity": 80}, violations: 0},
		{name: "over limit", data: map[string]interface{}{"capacity": 120}, violations: 1},
		{name: "exactly at limit", data: map[string]interface{}{"capacity": 100}, violations: 1},
		{name: "field absent", data: map[string]interface{}{"load": 120}, violations: 0},
		{name: "non numeric", data: map[string]interface{}{"capacity": "full"}, violations: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConstraintFixture(true)
			ctx := context.Background()
			if _, err := f.service.Create(ctx, capacityConstraint()); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			got, err := f.service.Evaluate(ctx, "resource", 7, tt.data)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if len(got) != tt.violations {
				t.Fatalf("Evaluate() = %d violations, want %d", len(got), tt.violations)
			}
			if len(f.violations.Violations) != tt.violations {
				t.Errorf("ledger holds %d violations, want %d", len(f.violations.Violations), tt.violations)
			}
			if tt.violations == 0 {
				return
			}

			v := got[0]
			if v.Severity != constraint.SeverityCritical {
				t.Errorf("Severity = %s, want critical", v.Severity)
			}
			if v.Status != constraint.StatusOpen {
				t.Errorf("Status = %s, want open", v.Status)
			}
			if v.ExpectedValue != "< 100" {
				t.Errorf("ExpectedValue = %q, want %q", v.ExpectedValue, "< 100")
			}
			if v.EntityType != "resource" || v.EntityID != 7 {
				t.Errorf("entity = %s/%d, want resource/7", v.EntityType, v.EntityID)
			}
		})
	}
}

func TestConstraintService_EvaluateRefreshesOpenViolation(t *testing.T) {
	f := newConstraintFixture(true)
	ctx := context.Background()
	f.service.Create(ctx, capacityConstraint())

	first, err := f.service.Evaluate(ctx, "resource", 7, map[string]interface{}{"capacity": 120})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	second, err := f.service.Evaluate(ctx, "resource", 7, map[string]interface{}{"capacity": 150})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if len(f.violations.Violations) != 1 {
		t.Fatalf("ledger holds %d violations, want 1", len(f.violations.Violations))
	}
	if first[0].ID != second[0].ID {
		t.Errorf("repeated breach got id %d, want %d", second[0].ID, first[0].ID)
	}
	if second[0].ActualValue != "150" {
		t.Errorf("ActualValue = %q, want refreshed 150", second[0].ActualValue)
	}

	// Once resolved, a new breach opens a fresh violation
	if _, err := f.service.Resolve(ctx, first[0].ID, "capacity reduced", "planner"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	third, _ := f.service.Evaluate(ctx, "resource", 7, map[string]interface{}{"capacity": 130})
	if third[0].ID == first[0].ID {
		t.Error("breach after resolution reused the closed violation")
	}
}

func TestConstraintService_EvaluateBrokenRuleWritesNothing(t *testing.T) {
	f := newConstraintFixture(true)
	ctx := context.Background()

	f.service.Create(ctx, capacityConstraint())
	// Stored before operator validation existed
	f.repo.Create(ctx, &constraint.Constraint{
		Name:     "Legacy rule",
		Scope:    constraint.ScopeGlobal,
		IsActive: true,
		Rule:     constraint.Rule{Field: "capacity", Operator: "approx", Value: 1},
	})

	_, err := f.service.Evaluate(ctx, "resource", 7, map[string]interface{}{"capacity": 120})
	if !errors.HasCode(err, errors.ErrCodeUnknownOperator) {
		t.Fatalf("Evaluate() error = %v, want UNKNOWN_OPERATOR", err)
	}
	if f.violations.UpsertCalls != 0 {
		t.Errorf("Evaluate() wrote %d violations before failing", f.violations.UpsertCalls)
	}
}

func TestConstraintService_EvaluateScope(t *testing.T) {
	f := newConstraintFixture(true)
	ctx := context.Background()

	target := int64(7)
	c := capacityConstraint()
	c.Scope = constraint.ScopeResource
	c.ScopeEntityID = &target
	f.service.Create(ctx, c)

	tests := []struct {
		entityType string
		entityID   int64
		want       int
	}{
		{"resource", 7, 1},
		{"resource", 8, 0},
		{"item", 7, 0},
	}
	for _, tt := range tests {
		got, err := f.service.Evaluate(ctx, tt.entityType, tt.entityID, map[string]interface{}{"capacity": 500})
		if err != nil {
			t.Fatalf("Evaluate(%s, %d) error = %v", tt.entityType, tt.entityID, err)
		}
		if len(got) != tt.want {
			t.Errorf("Evaluate(%s, %d) = %d violations, want %d", tt.entityType, tt.entityID, len(got), tt.want)
		}
	}
}

func TestConstraintService_EvaluateGlobalOnStrictType(t *testing.T) {
	f := newConstraintFixture(true)
	f.service.fields = detector.NewDomainFieldRegistry([]string{"buffer"})
	ctx := context.Background()

	// capacity is not a buffer field, level_percent is
	if _, err := f.service.Create(ctx, capacityConstraint()); err != nil {
		t.Fatalf("Create() global capacity error = %v", err)
	}
	level := &constraint.Constraint{
		Name:     "Buffer above half",
		Category: "buffer",
		Rule:     constraint.Rule{Field: "level_percent", Operator: constraint.OpGreaterOrEqual, Value: 0.5},
	}
	if _, err := f.service.Create(ctx, level); err != nil {
		t.Fatalf("Create() global level error = %v", err)
	}

	got, err := f.service.Evaluate(ctx, "buffer", 3, map[string]interface{}{
		"level_percent": "0.3",
		"capacity":      500,
	})
	if err != nil {
		t.Fatalf("Evaluate(buffer) error = %v", err)
	}
	if len(got) != 1 || got[0].ConstraintName != "Buffer above half" {
		t.Fatalf("Evaluate(buffer) = %+v, want only the level violation", got)
	}
	if got[0].ActualValue != "0.3" {
		t.Errorf("actual = %q, want numeric text coerced to 0.3", got[0].ActualValue)
	}

	// Non-strict types still see both global rules through dotted paths
	got, err = f.service.Evaluate(ctx, "item", 3, map[string]interface{}{
		"level_percent": 0.3,
		"capacity":      500,
	})
	if err != nil {
		t.Fatalf("Evaluate(item) error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Evaluate(item) = %d violations, want 2", len(got))
	}
}

func TestConstraintService_EvaluateExceptions(t *testing.T) {
	tests := []struct {
		name            string
		applyExceptions bool
		validUntil      time.Duration
		want            int
	}{
		{name: "active exception suppresses", applyExceptions: true, validUntil: time.Hour, want: 0},
		{name: "expired exception ignored", applyExceptions: true, validUntil: -time.Minute, want: 1},
		{name: "suppression disabled", applyExceptions: false, validUntil: time.Hour, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConstraintFixture(tt.applyExceptions)
			ctx := context.Background()
			c, _ := f.service.Create(ctx, capacityConstraint())

			until := time.Now().Add(tt.validUntil)
			_, err := f.service.CreateException(ctx, &constraint.Exception{
				ConstraintID: c.ID,
				EntityType:   "resource",
				Reason:       "planned overtime",
				ApprovedBy:   "plant manager",
				ValidFrom:    time.Now().Add(-2 * time.Hour),
				ValidUntil:   &until,
			})
			if err != nil {
				t.Fatalf("CreateException() error = %v", err)
			}

			got, err := f.service.Evaluate(ctx, "resource", 7, map[string]interface{}{"capacity": 150})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Evaluate() = %d violations, want %d", len(got), tt.want)
			}
		})
	}
}

func TestConstraintService_Severity(t *testing.T) {
	tests := []struct {
		level    string
		priority string
		want     string
	}{
		{constraint.SeverityLevelHard, constraint.PriorityLow, constraint.SeverityCritical},
		{constraint.SeverityLevelSoft, constraint.PriorityHigh, constraint.SeverityMajor},
		{constraint.SeverityLevelSoft, constraint.PriorityMedium, constraint.SeverityMinor},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.priority, func(t *testing.T) {
			f := newConstraintFixture(true)
			ctx := context.Background()
			c := capacityConstraint()
			c.SeverityLevel, c.Priority = tt.level, tt.priority
			f.service.Create(ctx, c)

			got, _ := f.service.Evaluate(ctx, "plant", 1, map[string]interface{}{"capacity": 200})
			if len(got) != 1 || got[0].Severity != tt.want {
				t.Errorf("Evaluate() = %+v, want one %s violation", got, tt.want)
			}
		})
	}
}

func TestConstraintService_Transitions(t *testing.T) {
	f := newConstraintFixture(true)
	ctx := context.Background()
	f.service.Create(ctx, capacityConstraint())

	first, _ := f.service.Evaluate(ctx, "resource", 1, map[string]interface{}{"capacity": 120})
	second, _ := f.service.Evaluate(ctx, "resource", 2, map[string]interface{}{"capacity": 120})

	resolved, err := f.service.Resolve(ctx, first[0].ID, "line rebalanced", "alice")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Status != constraint.StatusResolved || resolved.ResolvedBy == nil || *resolved.ResolvedBy != "alice" {
		t.Errorf("Resolve() = %+v", resolved)
	}

	if _, err := f.service.Waive(ctx, first[0].ID, "too late", "bob"); !errors.HasCode(err, errors.ErrCodeConflict) {
		t.Errorf("Waive() on resolved error = %v, want CONFLICT", err)
	}
	if _, err := f.service.Resolve(ctx, first[0].ID, "again", "alice"); !errors.HasCode(err, errors.ErrCodeConflict) {
		t.Errorf("Resolve() twice error = %v, want CONFLICT", err)
	}

	waived, err := f.service.Waive(ctx, second[0].ID, "accepted risk", "bob")
	if err != nil {
		t.Fatalf("Waive() error = %v", err)
	}
	if waived.Status != constraint.StatusWaived || waived.WaivedBy == nil {
		t.Errorf("Waive() = %+v", waived)
	}

	if _, err := f.service.Resolve(ctx, 999, "x", "y"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("Resolve() missing error = %v, want NOT_FOUND", err)
	}
	if _, err := f.service.Resolve(ctx, second[0].ID, "", "alice"); !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("Resolve() empty resolution error = %v, want VALIDATION_ERROR", err)
	}
}

func TestConstraintService_GetSummary(t *testing.T) {
	f := newConstraintFixture(true)
	ctx := context.Background()

	hard := capacityConstraint()
	f.service.Create(ctx, hard)
	soft := capacityConstraint()
	soft.Name = "Soft ceiling"
	soft.SeverityLevel = constraint.SeverityLevelSoft
	soft.Rule.Value = 50
	f.service.Create(ctx, soft)

	v, _ := f.service.Evaluate(ctx, "resource", 1, map[string]interface{}{"capacity": 120})
	f.service.Evaluate(ctx, "resource", 2, map[string]interface{}{"capacity": 70})
	f.service.Resolve(ctx, v[0].ID, "fixed", "alice")

	summary, err := f.service.GetSummary(ctx)
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}

	want := constraint.Summary{Total: 3, Critical: 1, Major: 2, Open: 2, Resolved: 1}
	if *summary != want {
		t.Errorf("GetSummary() = %+v, want %+v", *summary, want)
	}
}

func TestConstraintService_Exceptions(t *testing.T) {
	f := newConstraintFixture(true)
	ctx := context.Background()
	c, _ := f.service.Create(ctx, capacityConstraint())

	if _, err := f.service.CreateException(ctx, &constraint.Exception{ConstraintID: 42, EntityType: "resource", Reason: "r", ApprovedBy: "a"}); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("CreateException() unknown constraint error = %v, want NOT_FOUND", err)
	}

	before := time.Now().Add(-time.Hour)
	_, err := f.service.CreateException(ctx, &constraint.Exception{
		ConstraintID: c.ID, EntityType: "resource", Reason: "r", ApprovedBy: "a", ValidUntil: &before,
	})
	if !errors.HasCode(err, errors.ErrCodeValidation) {
		t.Errorf("CreateException() inverted window error = %v, want VALIDATION_ERROR", err)
	}

	e, err := f.service.CreateException(ctx, &constraint.Exception{ConstraintID: c.ID, EntityType: "resource", Reason: "r", ApprovedBy: "a"})
	if err != nil {
		t.Fatalf("CreateException() error = %v", err)
	}
	if err := f.service.DeactivateException(ctx, e.ID); err != nil {
		t.Fatalf("DeactivateException() error = %v", err)
	}

	list, _ := f.service.ListExceptions(ctx, c.ID)
	if len(list) != 1 || list[0].IsActive {
		t.Errorf("ListExceptions() = %+v, want one inactive exception", list)
	}

	got, _ := f.service.Evaluate(ctx, "resource", 1, map[string]interface{}{"capacity": 120})
	if len(got) != 1 {
		t.Errorf("deactivated exception still suppresses: %d violations", len(got))
	}
}
