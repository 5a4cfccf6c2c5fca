package constraint

import (
	"context"
	"time"
)

// Repository defines the interface for constraint data access
type Repository interface {
	// Create stores a new constraint and assigns its ID
	Create(ctx context.Context, c *Constraint) error

	// GetByID retrieves a constraint by ID
	GetByID(ctx context.Context, id int64) (*Constraint, error)

	// Update persists an edited constraint
	Update(ctx context.Context, c *Constraint) error

	// List retrieves constraints with filters
	List(ctx context.Context, filter Filter) ([]*Constraint, error)

	// GetApplicable returns active constraints that apply to the entity
	GetApplicable(ctx context.Context, entityType string, entityID int64) ([]*Constraint, error)
}

// ViolationRepository defines the interface for the violation ledger
type ViolationRepository interface {
	// WithinTx runs fn inside a transaction carried by the context it receives
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// UpsertOpen creates an open violation or refreshes the open violation
	// already recorded for the same constraint and entity
	UpsertOpen(ctx context.Context, v *Violation) error

	// GetByID retrieves a violation by ID
	GetByID(ctx context.Context, id int64) (*Violation, error)

	// Transition moves an open violation to a terminal status
	Transition(ctx context.Context, id int64, t Transition) error

	// List retrieves violations with filters
	List(ctx context.Context, filter ViolationFilter) ([]*Violation, error)

	// CountBySeverityAndStatus counts all violations grouped by severity and status
	CountBySeverityAndStatus(ctx context.Context) (map[string]map[string]int, error)
}

// ExceptionRepository defines the interface for constraint exceptions
type ExceptionRepository interface {
	// Create stores a new exception
	Create(ctx context.Context, e *Exception) error

	// Deactivate switches an exception off
	Deactivate(ctx context.Context, id int64) error

	// ListActive returns exceptions for the entity that are active at the given time
	ListActive(ctx context.Context, entityType string, entityID int64, at time.Time) ([]*Exception, error)

	// List returns every exception for a constraint
	List(ctx context.Context, constraintID int64) ([]*Exception, error)
}
