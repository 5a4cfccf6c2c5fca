package buffer

import "context"

// Repository defines the interface for buffer data access
type Repository interface {
	// WithinTx runs fn inside a transaction carried by the context it receives
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// CreateDefinition stores a new buffer definition
	CreateDefinition(ctx context.Context, d *Definition) error

	// GetDefinition retrieves a buffer definition by ID
	GetDefinition(ctx context.Context, id int64) (*Definition, error)

	// UpdateDefinition persists an edited buffer definition
	UpdateDefinition(ctx context.Context, d *Definition) error

	// ListDefinitions retrieves buffer definitions with filters
	ListDefinitions(ctx context.Context, filter Filter) ([]*Definition, error)

	// LockDefinition takes an exclusive lock on the definition row for the
	// rest of the transaction; a no-op where the store serializes writers
	LockDefinition(ctx context.Context, id int64) error

	// GetLatestConsumption returns the newest observation, or nil when none exists
	GetLatestConsumption(ctx context.Context, bufferID int64) (*Consumption, error)

	// CreateConsumption appends an observation
	CreateConsumption(ctx context.Context, c *Consumption) error

	// CreateHistoryEvent appends a zone-change event
	CreateHistoryEvent(ctx context.Context, e *HistoryEvent) error

	// ListConsumptions returns the newest observations first
	ListConsumptions(ctx context.Context, bufferID int64, limit int) ([]*Consumption, error)

	// ListHistory returns the newest zone-change events first
	ListHistory(ctx context.Context, bufferID int64, limit int) ([]*HistoryEvent, error)

	// ListLatestObservations returns every active definition with its newest
	// observation and active policy
	ListLatestObservations(ctx context.Context) ([]*LatestObservation, error)

	// GetPolicy returns the active policy for a buffer, or nil
	GetPolicy(ctx context.Context, bufferID int64) (*Policy, error)

	// UpsertPolicy stores the policy of a buffer
	UpsertPolicy(ctx context.Context, p *Policy) error
}

// DefinitionCache is a read-through cache of buffer definitions; entries
// must be invalidated whenever a definition is edited
type DefinitionCache interface {
	Get(ctx context.Context, id int64) (*Definition, bool)
	Set(ctx context.Context, d *Definition)
	Invalidate(ctx context.Context, id int64)
}
