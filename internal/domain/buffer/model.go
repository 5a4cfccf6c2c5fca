package buffer

import "time"

// Buffer types
const (
	TypeTime  = "time"
	TypeStock = "stock"
)

// Buffer categories
const (
	CategoryDrum     = "drum"
	CategoryFeeding  = "feeding"
	CategoryShipping = "shipping"
	CategoryStock    = "stock"
	CategorySpace    = "space"
	CategoryCapacity = "capacity"
)

// Zone classifies remaining buffer capacity
type Zone string

// Zones
const (
	ZoneRed    Zone = "red"
	ZoneYellow Zone = "yellow"
	ZoneGreen  Zone = "green"
)

// Alert status of an observation
const (
	AlertNormal    = "normal"
	AlertWarning   = "warning"
	AlertCritical  = "critical"
	AlertEmergency = "emergency"
)

// Impact severity of a zone change
const (
	ImpactCritical = "critical"
	ImpactMedium   = "medium"
	ImpactLow      = "low"
)

// Action hints
const (
	ActionExpedite = "Expedite replenishment"
	ActionMonitor  = "Monitor closely"
)

// EventZoneChange is the only history event the monitor writes
const EventZoneChange = "zone_change"

// Definition configures one protective buffer
type Definition struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	BufferType         string    `json:"buffer_type"`
	BufferCategory     string    `json:"buffer_category"`
	TargetSize         float64   `json:"target_size"`
	UOM                string    `json:"uom,omitempty"`
	RedZonePercent     float64   `json:"red_zone_percent"`
	YellowZonePercent  float64   `json:"yellow_zone_percent"`
	LocationEntityType string    `json:"location_entity_type,omitempty"`
	LocationEntityID   *int64    `json:"location_entity_id,omitempty"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// GreenZonePercent is the remainder above the yellow band
func (d *Definition) GreenZonePercent() float64 {
	return 100 - d.RedZonePercent - d.YellowZonePercent
}

// EntityRef points at the entity that drew the buffer down
type EntityRef struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// Consumption is one observation of a buffer's level
type Consumption struct {
	ID                 int64      `json:"id"`
	BufferDefinitionID int64      `json:"buffer_definition_id"`
	CurrentLevel       float64    `json:"current_level"`
	LevelPercent       float64    `json:"level_percent"`
	CurrentZone        Zone       `json:"current_zone"`
	ConsumptionRate    float64    `json:"consumption_rate"`
	PenetrationIntoRed float64    `json:"penetration_into_red"`
	AlertStatus        string     `json:"alert_status"`
	ActionRequired     *string    `json:"action_required,omitempty"`
	ConsumingEntity    *EntityRef `json:"consuming_entity,omitempty"`
	RecordedAt         time.Time  `json:"recorded_at"`
}

// HistoryEvent records a zone change between two consecutive observations
type HistoryEvent struct {
	ID                 int64      `json:"id"`
	BufferDefinitionID int64      `json:"buffer_definition_id"`
	ConsumptionID      int64      `json:"consumption_id"`
	EventType          string     `json:"event_type"`
	PreviousLevel      float64    `json:"previous_level"`
	NewLevel           float64    `json:"new_level"`
	PreviousZone       Zone       `json:"previous_zone"`
	NewZone            Zone       `json:"new_zone"`
	ImpactSeverity     string     `json:"impact_severity"`
	ConsumingEntity    *EntityRef `json:"consuming_entity,omitempty"`
	OccurredAt         time.Time  `json:"occurred_at"`
}

// Policy holds replenishment settings read by health analysis and alerting
type Policy struct {
	ID                          int64     `json:"id"`
	BufferDefinitionID          int64     `json:"buffer_definition_id"`
	ReplenishmentRule           string    `json:"replenishment_rule"`
	ReplenishmentLeadTimeHours  float64   `json:"replenishment_lead_time_hours"`
	EmergencyPenetrationPercent *float64  `json:"emergency_penetration_percent,omitempty"`
	IsActive                    bool      `json:"is_active"`
	UpdatedAt                   time.Time `json:"updated_at"`
}

// PenetrationPoint is one entry of a buffer's penetration history
type PenetrationPoint struct {
	RecordedAt         time.Time `json:"recorded_at"`
	Level              float64   `json:"level"`
	Zone               Zone      `json:"zone"`
	PenetrationIntoRed float64   `json:"penetration_into_red"`
}

// Health is the result of analysing one buffer
type Health struct {
	BufferDefinitionID  int64              `json:"buffer_definition_id"`
	BufferName          string             `json:"buffer_name"`
	CurrentStatus       *Consumption       `json:"current_status"`
	PenetrationHistory  []PenetrationPoint `json:"penetration_history"`
	Recommendations     []string           `json:"recommendations"`
	ProjectedExhaustion *float64           `json:"projected_exhaustion_hours,omitempty"`
}

// Alert describes a buffer currently outside its green zone
type Alert struct {
	BufferID   int64   `json:"buffer_id"`
	BufferName string  `json:"buffer_name"`
	AlertType  string  `json:"alert_type"`
	Severity   string  `json:"severity"`
	Message    string  `json:"message"`
	Level      float64 `json:"level"`
	Zone       Zone    `json:"zone"`
}

// LatestObservation pairs an active definition with its newest observation
type LatestObservation struct {
	Definition  *Definition
	Consumption *Consumption
	Policy      *Policy
}

// Filter contains buffer definition filtering options
type Filter struct {
	BufferType     string
	BufferCategory string
	ActiveOnly     bool
}
