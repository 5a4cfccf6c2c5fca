package drum

import "context"

// Repository defines the interface for drum data access
type Repository interface {
	// WithinTx runs fn inside a transaction carried by the context it receives
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// CreateResource registers a plant resource
	CreateResource(ctx context.Context, r *Resource) error

	// RecordOperation appends an operation run on a resource
	RecordOperation(ctx context.Context, op *Operation) error

	// GetResource retrieves the drum fields of a resource
	GetResource(ctx context.Context, id int64) (*Resource, error)

	// ListDrums returns resources currently designated as drums
	ListDrums(ctx context.Context) ([]*Resource, error)

	// ListUtilization aggregates operations for every resource
	ListUtilization(ctx context.Context) ([]*Utilization, error)

	// SetDrumFlag applies a designation change to a resource
	SetDrumFlag(ctx context.Context, d Designation) error

	// CreateAnalysisHistory appends a ledger entry
	CreateAnalysisHistory(ctx context.Context, h *AnalysisHistory) error

	// ListAnalysisHistory returns the newest ledger entries first
	ListAnalysisHistory(ctx context.Context, limit int) ([]*AnalysisHistory, error)
}
