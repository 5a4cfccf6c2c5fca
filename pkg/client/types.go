package client

import "time"

// Rule is a constraint's {field, operator, value} triple
type Rule struct {
	Field    string      `json:"field" yaml:"field"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value" yaml:"value"`
}

// Constraint is a named, versioned rule
type Constraint struct {
	ID            int64     `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	Category      string    `json:"category" yaml:"category"`
	Scope         string    `json:"scope" yaml:"scope"`
	ScopeEntityID *int64    `json:"scope_entity_id,omitempty" yaml:"scope_entity_id,omitempty"`
	SeverityLevel string    `json:"severity_level" yaml:"severity_level"`
	Priority      string    `json:"priority" yaml:"priority"`
	IsActive      bool      `json:"is_active" yaml:"is_active"`
	Version       int       `json:"version" yaml:"version"`
	Rule          Rule      `json:"rule" yaml:"rule"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Violation is one detected breach of a constraint
type Violation struct {
	ID                int64      `json:"id" yaml:"id"`
	ConstraintID      int64      `json:"constraint_id" yaml:"constraint_id"`
	ConstraintName    string     `json:"constraint_name,omitempty" yaml:"constraint_name,omitempty"`
	EntityType        string     `json:"entity_type" yaml:"entity_type"`
	EntityID          int64      `json:"entity_id" yaml:"entity_id"`
	ActualValue       string     `json:"actual_value" yaml:"actual_value"`
	ExpectedValue     string     `json:"expected_value" yaml:"expected_value"`
	Severity          string     `json:"severity" yaml:"severity"`
	ImpactDescription string     `json:"impact_description" yaml:"impact_description"`
	Status            string     `json:"status" yaml:"status"`
	Resolution        *string    `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	ResolvedBy        *string    `json:"resolved_by,omitempty" yaml:"resolved_by,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
	WaiverReason      *string    `json:"waiver_reason,omitempty" yaml:"waiver_reason,omitempty"`
	WaivedBy          *string    `json:"waived_by,omitempty" yaml:"waived_by,omitempty"`
	WaivedAt          *time.Time `json:"waived_at,omitempty" yaml:"waived_at,omitempty"`
	DetectedAt        time.Time  `json:"detected_at" yaml:"detected_at"`
}

// ViolationSummary counts violations by severity and status
type ViolationSummary struct {
	Total    int `json:"total" yaml:"total"`
	Critical int `json:"critical" yaml:"critical"`
	Major    int `json:"major" yaml:"major"`
	Minor    int `json:"minor" yaml:"minor"`
	Open     int `json:"open" yaml:"open"`
	Resolved int `json:"resolved" yaml:"resolved"`
	Waived   int `json:"waived" yaml:"waived"`
}

// Exception waives a constraint for an entity inside a time window
type Exception struct {
	ID           int64      `json:"id" yaml:"id"`
	ConstraintID int64      `json:"constraint_id" yaml:"constraint_id"`
	EntityType   string     `json:"entity_type" yaml:"entity_type"`
	EntityID     *int64     `json:"entity_id,omitempty" yaml:"entity_id,omitempty"`
	Reason       string     `json:"reason" yaml:"reason"`
	ApprovedBy   string     `json:"approved_by" yaml:"approved_by"`
	ValidFrom    time.Time  `json:"valid_from" yaml:"valid_from"`
	ValidUntil   *time.Time `json:"valid_until,omitempty" yaml:"valid_until,omitempty"`
	IsActive     bool       `json:"is_active" yaml:"is_active"`
}

// EvaluationResult lists the violations produced by one evaluation
type EvaluationResult struct {
	EntityType string      `json:"entity_type" yaml:"entity_type"`
	EntityID   int64       `json:"entity_id" yaml:"entity_id"`
	Violations []Violation `json:"violations" yaml:"violations"`
	Count      int         `json:"count" yaml:"count"`
}

// Buffer is a buffer definition
type Buffer struct {
	ID                 int64     `json:"id" yaml:"id"`
	Name               string    `json:"name" yaml:"name"`
	BufferType         string    `json:"buffer_type" yaml:"buffer_type"`
	BufferCategory     string    `json:"buffer_category" yaml:"buffer_category"`
	TargetSize         float64   `json:"target_size" yaml:"target_size"`
	UOM                string    `json:"uom,omitempty" yaml:"uom,omitempty"`
	RedZonePercent     float64   `json:"red_zone_percent" yaml:"red_zone_percent"`
	YellowZonePercent  float64   `json:"yellow_zone_percent" yaml:"yellow_zone_percent"`
	LocationEntityType string    `json:"location_entity_type,omitempty" yaml:"location_entity_type,omitempty"`
	LocationEntityID   *int64    `json:"location_entity_id,omitempty" yaml:"location_entity_id,omitempty"`
	IsActive           bool      `json:"is_active" yaml:"is_active"`
	CreatedAt          time.Time `json:"created_at" yaml:"created_at"`
}

// EntityRef identifies the entity that consumed a buffer
type EntityRef struct {
	Type string `json:"type" yaml:"type"`
	ID   int64  `json:"id" yaml:"id"`
}

// Consumption is one observation of a buffer's level
type Consumption struct {
	ID                 int64      `json:"id" yaml:"id"`
	BufferDefinitionID int64      `json:"buffer_definition_id" yaml:"buffer_definition_id"`
	CurrentLevel       float64    `json:"current_level" yaml:"current_level"`
	LevelPercent       float64    `json:"level_percent" yaml:"level_percent"`
	CurrentZone        string     `json:"current_zone" yaml:"current_zone"`
	ConsumptionRate    float64    `json:"consumption_rate" yaml:"consumption_rate"`
	PenetrationIntoRed float64    `json:"penetration_into_red" yaml:"penetration_into_red"`
	AlertStatus        string     `json:"alert_status" yaml:"alert_status"`
	ActionRequired     *string    `json:"action_required,omitempty" yaml:"action_required,omitempty"`
	ConsumingEntity    *EntityRef `json:"consuming_entity,omitempty" yaml:"consuming_entity,omitempty"`
	RecordedAt         time.Time  `json:"recorded_at" yaml:"recorded_at"`
}

// ZoneChange is a buffer history event
type ZoneChange struct {
	ID             int64     `json:"id" yaml:"id"`
	PreviousLevel  float64   `json:"previous_level" yaml:"previous_level"`
	NewLevel       float64   `json:"new_level" yaml:"new_level"`
	PreviousZone   string    `json:"previous_zone" yaml:"previous_zone"`
	NewZone        string    `json:"new_zone" yaml:"new_zone"`
	ImpactSeverity string    `json:"impact_severity" yaml:"impact_severity"`
	OccurredAt     time.Time `json:"occurred_at" yaml:"occurred_at"`
}

// PenetrationPoint is one entry of a buffer's penetration history
type PenetrationPoint struct {
	RecordedAt         time.Time `json:"recorded_at" yaml:"recorded_at"`
	Level              float64   `json:"level" yaml:"level"`
	Zone               string    `json:"zone" yaml:"zone"`
	PenetrationIntoRed float64   `json:"penetration_into_red" yaml:"penetration_into_red"`
}

// BufferHealth is the analysis of one buffer
type BufferHealth struct {
	BufferDefinitionID  int64              `json:"buffer_definition_id" yaml:"buffer_definition_id"`
	BufferName          string             `json:"buffer_name" yaml:"buffer_name"`
	CurrentStatus       *Consumption       `json:"current_status" yaml:"current_status"`
	PenetrationHistory  []PenetrationPoint `json:"penetration_history" yaml:"penetration_history"`
	Recommendations     []string           `json:"recommendations" yaml:"recommendations"`
	ProjectedExhaustion *float64           `json:"projected_exhaustion_hours,omitempty" yaml:"projected_exhaustion_hours,omitempty"`
}

// BufferAlert describes a buffer outside its green zone
type BufferAlert struct {
	BufferID   int64   `json:"buffer_id" yaml:"buffer_id"`
	BufferName string  `json:"buffer_name" yaml:"buffer_name"`
	AlertType  string  `json:"alert_type" yaml:"alert_type"`
	Severity   string  `json:"severity" yaml:"severity"`
	Message    string  `json:"message" yaml:"message"`
	Level      float64 `json:"level" yaml:"level"`
	Zone       string  `json:"zone" yaml:"zone"`
}

// BufferPolicy holds replenishment settings
type BufferPolicy struct {
	BufferDefinitionID          int64    `json:"buffer_definition_id" yaml:"buffer_definition_id"`
	ReplenishmentRule           string   `json:"replenishment_rule" yaml:"replenishment_rule"`
	ReplenishmentLeadTimeHours  float64  `json:"replenishment_lead_time_hours" yaml:"replenishment_lead_time_hours"`
	EmergencyPenetrationPercent *float64 `json:"emergency_penetration_percent,omitempty" yaml:"emergency_penetration_percent,omitempty"`
	IsActive                    bool     `json:"is_active" yaml:"is_active"`
}

// Resource is a plant resource as seen by the drum analyzer
type Resource struct {
	ID                    int64      `json:"id" yaml:"id"`
	Name                  string     `json:"name" yaml:"name"`
	IsDrum                bool       `json:"is_drum" yaml:"is_drum"`
	DrumType              *string    `json:"drum_type,omitempty" yaml:"drum_type,omitempty"`
	DrumDesignationDate   *time.Time `json:"drum_designation_date,omitempty" yaml:"drum_designation_date,omitempty"`
	DrumDesignationReason *string    `json:"drum_designation_reason,omitempty" yaml:"drum_designation_reason,omitempty"`
	DrumDesignationMethod *string    `json:"drum_designation_method,omitempty" yaml:"drum_designation_method,omitempty"`
}

// DrumRecommendation is one scored resource
type DrumRecommendation struct {
	ResourceID     int64   `json:"resource_id" yaml:"resource_id"`
	ResourceName   string  `json:"resource_name" yaml:"resource_name"`
	Score          float64 `json:"score" yaml:"score"`
	IsDrum         bool    `json:"is_drum" yaml:"is_drum"`
	OperationCount int     `json:"operation_count" yaml:"operation_count"`
	AvgDuration    float64 `json:"avg_duration" yaml:"avg_duration"`
	TotalDuration  float64 `json:"total_duration" yaml:"total_duration"`
	Recommendation string  `json:"recommendation" yaml:"recommendation"`
}

// DrumAnalysis summarises a batch analysis pass
type DrumAnalysis struct {
	Analyzed        int                  `json:"analyzed" yaml:"analyzed"`
	Identified      int                  `json:"identified" yaml:"identified"`
	Updated         int                  `json:"updated" yaml:"updated"`
	Recommendations []DrumRecommendation `json:"recommendations" yaml:"recommendations"`
}

// DrumHistory is one analyzer ledger entry
type DrumHistory struct {
	ID                  int64     `json:"id" yaml:"id"`
	AnalysisType        string    `json:"analysis_type" yaml:"analysis_type"`
	Action              string    `json:"action" yaml:"action"`
	ResourceID          *int64    `json:"resource_id,omitempty" yaml:"resource_id,omitempty"`
	ResourceName        *string   `json:"resource_name,omitempty" yaml:"resource_name,omitempty"`
	BottleneckScore     *float64  `json:"bottleneck_score,omitempty" yaml:"bottleneck_score,omitempty"`
	ResourcesAnalyzed   int       `json:"resources_analyzed" yaml:"resources_analyzed"`
	DrumsIdentified     int       `json:"drums_identified" yaml:"drums_identified"`
	DesignationsUpdated int       `json:"designations_updated" yaml:"designations_updated"`
	AnalyzedBy          *string   `json:"analyzed_by,omitempty" yaml:"analyzed_by,omitempty"`
	AnalysisDate        time.Time `json:"analysis_date" yaml:"analysis_date"`
}

// Operation is one unit of work recorded on a resource
type Operation struct {
	ID              int64     `json:"id" yaml:"id"`
	ResourceID      int64     `json:"resource_id" yaml:"resource_id"`
	Name            string    `json:"name" yaml:"name"`
	DurationMinutes float64   `json:"duration_minutes" yaml:"duration_minutes"`
	PerformedAt     time.Time `json:"performed_at" yaml:"performed_at"`
}

// HealthResponse represents the liveness response
type HealthResponse struct {
	Status string `json:"status" yaml:"status"`
}

// ReadinessResponse represents the readiness response
type ReadinessResponse struct {
	Status string `json:"status" yaml:"status"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
}
