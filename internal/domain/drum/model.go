package drum

import "time"

// Drum types
const (
	TypePrimary   = "primary"
	TypeSecondary = "secondary"
	TypePotential = "potential"
)

// Designation methods
const (
	MethodManual    = "manual"
	MethodAutomated = "automated"
)

// Analysis types
const (
	AnalysisManual    = "manual"
	AnalysisAutomated = "automated"
)

// History actions
const (
	ActionAnalyze   = "analyze"
	ActionDesignate = "designate"
	ActionClear     = "clear"
)

// Score thresholds
const (
	DesignateThreshold = 70
	ClearThreshold     = 30
	RecommendationTop  = 10
)

// Resource is the drum-related subset of a plant resource
type Resource struct {
	ID                    int64      `json:"id"`
	Name                  string     `json:"name"`
	IsDrum                bool       `json:"is_drum"`
	DrumType              *string    `json:"drum_type,omitempty"`
	DrumDesignationDate   *time.Time `json:"drum_designation_date,omitempty"`
	DrumDesignationReason *string    `json:"drum_designation_reason,omitempty"`
	DrumDesignationMethod *string    `json:"drum_designation_method,omitempty"`
}

// Operation is one unit of work executed on a resource
type Operation struct {
	ID              int64     `json:"id"`
	ResourceID      int64     `json:"resource_id"`
	Name            string    `json:"name"`
	DurationMinutes float64   `json:"duration_minutes"`
	PerformedAt     time.Time `json:"performed_at"`
}

// Utilization aggregates the operations run on a resource
type Utilization struct {
	ResourceID     int64   `json:"resource_id"`
	ResourceName   string  `json:"resource_name"`
	IsDrum         bool    `json:"is_drum"`
	OperationCount int     `json:"operation_count"`
	TotalDuration  float64 `json:"total_duration"`
	AvgDuration    float64 `json:"avg_duration"`
}

// Designation is a drum flag change to apply to a resource
type Designation struct {
	ResourceID int64
	IsDrum     bool
	DrumType   string
	Reason     string
	Method     string
	At         time.Time
}

// AnalysisHistory is one ledger entry of the drum analyzer
type AnalysisHistory struct {
	ID                  int64     `json:"id"`
	AnalysisType        string    `json:"analysis_type"`
	Action              string    `json:"action"`
	ResourceID          *int64    `json:"resource_id,omitempty"`
	ResourceName        *string   `json:"resource_name,omitempty"`
	BottleneckScore     *float64  `json:"bottleneck_score,omitempty"`
	OperationCount      *int      `json:"operation_count,omitempty"`
	TotalDuration       *float64  `json:"total_duration,omitempty"`
	ResourcesAnalyzed   int       `json:"resources_analyzed"`
	DrumsIdentified     int       `json:"drums_identified"`
	DesignationsUpdated int       `json:"designations_updated"`
	Recommendations     string    `json:"recommendations,omitempty"`
	AnalyzedBy          *string   `json:"analyzed_by,omitempty"`
	AnalysisDate        time.Time `json:"analysis_date"`
}

// Recommendation is one scored resource returned by a batch analysis
type Recommendation struct {
	ResourceID     int64   `json:"resource_id"`
	ResourceName   string  `json:"resource_name"`
	Score          float64 `json:"score"`
	IsDrum         bool    `json:"is_drum"`
	OperationCount int     `json:"operation_count"`
	AvgDuration    float64 `json:"avg_duration"`
	TotalDuration  float64 `json:"total_duration"`
	Recommendation string  `json:"recommendation"`
}

// AnalysisResult summarises a batch analysis pass
type AnalysisResult struct {
	Analyzed        int              `json:"analyzed"`
	Identified      int              `json:"identified"`
	Updated         int              `json:"updated"`
	Recommendations []Recommendation `json:"recommendations"`
}
