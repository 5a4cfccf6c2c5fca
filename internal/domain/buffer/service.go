package buffer

import "context"

// Service defines the interface for the buffer monitor
type Service interface {
	// CreateDefinition validates and stores a buffer definition
	CreateDefinition(ctx context.Context, d *Definition) (*Definition, error)

	// GetDefinition retrieves a buffer definition
	GetDefinition(ctx context.Context, id int64) (*Definition, error)

	// UpdateDefinition edits a buffer definition
	UpdateDefinition(ctx context.Context, id int64, updates map[string]interface{}) (*Definition, error)

	// ListDefinitions retrieves buffer definitions
	ListDefinitions(ctx context.Context, filter Filter) ([]*Definition, error)

	// UpdateLevel records a new observed level and classifies it
	UpdateLevel(ctx context.Context, bufferID int64, newLevel float64, consumer *EntityRef) (*Consumption, error)

	// AnalyzeHealth summarises the buffer's recent behaviour
	AnalyzeHealth(ctx context.Context, bufferID int64) (*Health, error)

	// GetAlerts lists buffers currently in warning, critical or emergency state
	GetAlerts(ctx context.Context) ([]*Alert, error)

	// ListConsumptions returns recent observations
	ListConsumptions(ctx context.Context, bufferID int64, limit int) ([]*Consumption, error)

	// ListHistory returns recent zone-change events
	ListHistory(ctx context.Context, bufferID int64, limit int) ([]*HistoryEvent, error)

	// SetPolicy stores the replenishment policy of a buffer
	SetPolicy(ctx context.Context, p *Policy) (*Policy, error)
}
