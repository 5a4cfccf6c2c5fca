package constraint

import "time"

// Constraint is a named, versioned rule evaluated against entity snapshots
type Constraint struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category"`
	Scope         Scope     `json:"scope"`
	ScopeEntityID *int64    `json:"scope_entity_id,omitempty"`
	SeverityLevel string    `json:"severity_level"`
	Priority      string    `json:"priority"`
	IsActive      bool      `json:"is_active"`
	Version       int       `json:"version"`
	Rule          Rule      `json:"rule"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Rule is the stored {field, operator, value} triple
type Rule struct {
	Field    string      `json:"field" yaml:"field"`
	Operator Operator    `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value" yaml:"value"`
}

// Operator is a rule comparison operator
type Operator string

// Supported operators
const (
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
	OpLessThan       Operator = "<"
	OpGreaterThan    Operator = ">"
	OpLessOrEqual    Operator = "<="
	OpGreaterOrEqual Operator = ">="
	OpBetween        Operator = "between"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
)

// Valid reports whether the operator is one the evaluator understands
func (o Operator) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpLessThan, OpGreaterThan, OpLessOrEqual,
		OpGreaterOrEqual, OpBetween, OpIn, OpNotIn:
		return true
	default:
		return false
	}
}

// Scope narrows which entities a constraint applies to
type Scope string

// Scopes
const (
	ScopeGlobal   Scope = "global"
	ScopePlant    Scope = "plant"
	ScopeResource Scope = "resource"
	ScopeItem     Scope = "item"
)

// Valid reports whether the scope is known
func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopePlant, ScopeResource, ScopeItem:
		return true
	default:
		return false
	}
}

// Severity levels (authoring)
const (
	SeverityLevelHard = "hard"
	SeverityLevelSoft = "soft"
)

// Priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Violation severities (derived)
const (
	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
)

// Violation status
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusWaived   = "waived"
)

// DeriveSeverity maps a constraint's severity level and priority onto the
// severity recorded on its violations
func DeriveSeverity(c *Constraint) string {
	if c.SeverityLevel == SeverityLevelHard {
		return SeverityCritical
	}
	if c.Priority == PriorityHigh {
		return SeverityMajor
	}
	return SeverityMinor
}

// Violation is one detected breach of a constraint by an entity
type Violation struct {
	ID                int64      `json:"id"`
	ConstraintID      int64      `json:"constraint_id"`
	ConstraintName    string     `json:"constraint_name,omitempty"`
	EntityType        string     `json:"entity_type"`
	EntityID          int64      `json:"entity_id"`
	ActualValue       string     `json:"actual_value"`
	ExpectedValue     string     `json:"expected_value"`
	Severity          string     `json:"severity"`
	ImpactDescription string     `json:"impact_description"`
	Status            string     `json:"status"`
	Resolution        *string    `json:"resolution,omitempty"`
	ResolvedBy        *string    `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	WaiverReason      *string    `json:"waiver_reason,omitempty"`
	WaivedBy          *string    `json:"waived_by,omitempty"`
	WaivedAt          *time.Time `json:"waived_at,omitempty"`
	DetectedAt        time.Time  `json:"detected_at"`
	UpdatedAt         time.Time  `json:"updated_at,omitempty"`
}

// Transition is a terminal status change applied to an open violation
type Transition struct {
	Status string
	Note   string // resolution text or waiver reason
	Actor  string // resolver or approver
	At     time.Time
}

// Exception waives a constraint for one entity, or every entity of a type
// when EntityID is nil, inside a time window
type Exception struct {
	ID           int64      `json:"id"`
	ConstraintID int64      `json:"constraint_id"`
	EntityType   string     `json:"entity_type"`
	EntityID     *int64     `json:"entity_id,omitempty"`
	Reason       string     `json:"reason"`
	ApprovedBy   string     `json:"approved_by"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidUntil   *time.Time `json:"valid_until,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Covers reports whether the exception suppresses a breach at the given time
func (e *Exception) Covers(constraintID int64, entityType string, entityID int64, at time.Time) bool {
	if !e.IsActive || e.ConstraintID != constraintID || e.EntityType != entityType {
		return false
	}
	if e.EntityID != nil && *e.EntityID != entityID {
		return false
	}
	if at.Before(e.ValidFrom) {
		return false
	}
	return e.ValidUntil == nil || !at.After(*e.ValidUntil)
}

// Summary aggregates violations by severity and status
type Summary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Open     int `json:"open"`
	Resolved int `json:"resolved"`
	Waived   int `json:"waived"`
}

// Filter contains constraint filtering options
type Filter struct {
	Category   string
	Scope      string
	ActiveOnly bool
}

// ViolationFilter contains violation filtering options
type ViolationFilter struct {
	ConstraintID int64
	EntityType   string
	EntityID     int64
	Severity     string
	Status       string
}
