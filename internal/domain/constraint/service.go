package constraint

import "context"

// Service defines the interface for the rule evaluator and violation workflow
type Service interface {
	// Create validates and stores a new constraint
	Create(ctx context.Context, c *Constraint) (*Constraint, error)

	// GetByID retrieves a constraint
	GetByID(ctx context.Context, id int64) (*Constraint, error)

	// Update edits a constraint and bumps its version
	Update(ctx context.Context, id int64, updates map[string]interface{}) (*Constraint, error)

	// Deactivate soft-deletes a constraint
	Deactivate(ctx context.Context, id int64) error

	// List retrieves constraints
	List(ctx context.Context, filter Filter) ([]*Constraint, error)

	// Evaluate checks every applicable constraint against the snapshot and
	// records the breaches
	Evaluate(ctx context.Context, entityType string, entityID int64, data map[string]interface{}) ([]*Violation, error)

	// GetViolation retrieves one violation
	GetViolation(ctx context.Context, id int64) (*Violation, error)

	// ListViolations retrieves violations
	ListViolations(ctx context.Context, filter ViolationFilter) ([]*Violation, error)

	// Resolve moves an open violation to resolved
	Resolve(ctx context.Context, id int64, resolution, resolvedBy string) (*Violation, error)

	// Waive moves an open violation to waived
	Waive(ctx context.Context, id int64, reason, approvedBy string) (*Violation, error)

	// GetSummary counts violations by severity and status
	GetSummary(ctx context.Context) (*Summary, error)

	// CreateException records a waiver window for a constraint
	CreateException(ctx context.Context, e *Exception) (*Exception, error)

	// DeactivateException switches an exception off
	DeactivateException(ctx context.Context, id int64) error

	// ListExceptions lists the exceptions of a constraint
	ListExceptions(ctx context.Context, constraintID int64) ([]*Exception, error)
}
