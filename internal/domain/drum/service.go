package drum

import "context"

// Service defines the interface for the drum analyzer
type Service interface {
	// AnalyzeAll scores every resource and applies automated designation changes
	AnalyzeAll(ctx context.Context) (*AnalysisResult, error)

	// Designate marks a resource as a drum by hand
	Designate(ctx context.Context, resourceID int64, drumType, reason, userID string) (*Resource, error)

	// Clear removes a manual drum designation
	Clear(ctx context.Context, resourceID int64, reason, userID string) (*Resource, error)

	// RegisterResource adds a resource the analyzer can score
	RegisterResource(ctx context.Context, r *Resource) (*Resource, error)

	// RecordOperation feeds utilization telemetry for a resource
	RecordOperation(ctx context.Context, op *Operation) (*Operation, error)

	// ListUtilization returns the current utilization aggregates with scores
	ListUtilization(ctx context.Context) ([]Recommendation, error)

	// ListDrums returns current drums
	ListDrums(ctx context.Context) ([]*Resource, error)

	// ListHistory returns recent analysis ledger entries
	ListHistory(ctx context.Context, limit int) ([]*AnalysisHistory, error)
}
