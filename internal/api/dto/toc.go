package dto

import (
	"time"

	"github.com/pratik-mahalle/tocguard/internal/domain/buffer"
	"github.com/pratik-mahalle/tocguard/internal/domain/constraint"
)

// RuleDTO is the {field, operator, value} triple of a constraint
type RuleDTO struct {
	Field    string      `json:"field" validate:"required,field_path"`
	Operator string      `json:"operator" validate:"required"`
	Value    interface{} `json:"value"`
}

// ToRule converts the DTO into the domain triple
func (r RuleDTO) ToRule() constraint.Rule {
	return constraint.Rule{Field: r.Field, Operator: constraint.Operator(r.Operator), Value: r.Value}
}

// CreateConstraintRequest represents a constraint creation request
type CreateConstraintRequest struct {
	Name          string  `json:"name" validate:"required,max=200"`
	Description   string  `json:"description"`
	Category      string  `json:"category" validate:"required,max=100"`
	Scope         string  `json:"scope" validate:"omitempty,rule_scope"`
	ScopeEntityID *int64  `json:"scope_entity_id"`
	SeverityLevel string  `json:"severity_level" validate:"omitempty,oneof=hard soft"`
	Priority      string  `json:"priority" validate:"omitempty,oneof=high medium low"`
	IsActive      *bool   `json:"is_active"`
	Rule          RuleDTO `json:"rule" validate:"required"`
}

// UpdateConstraintRequest represents a partial constraint update
type UpdateConstraintRequest struct {
	Name          *string  `json:"name" validate:"omitempty,max=200"`
	Description   *string  `json:"description"`
	Category      *string  `json:"category" validate:"omitempty,max=100"`
	Scope         *string  `json:"scope" validate:"omitempty,rule_scope"`
	ScopeEntityID *int64   `json:"scope_entity_id"`
	SeverityLevel *string  `json:"severity_level" validate:"omitempty,oneof=hard soft"`
	Priority      *string  `json:"priority" validate:"omitempty,oneof=high medium low"`
	IsActive      *bool    `json:"is_active"`
	Rule          *RuleDTO `json:"rule"`
}

// Updates flattens the request into the service's update map
func (r UpdateConstraintRequest) Updates() map[string]interface{} {
	updates := make(map[string]interface{})
	if r.Name != nil {
		updates["name"] = *r.Name
	}
	if r.Description != nil {
		updates["description"] = *r.Description
	}
	if r.Category != nil {
		updates["category"] = *r.Category
	}
	if r.Scope != nil {
		updates["scope"] = *r.Scope
	}
	if r.ScopeEntityID != nil {
		updates["scope_entity_id"] = *r.ScopeEntityID
	}
	if r.SeverityLevel != nil {
		updates["severity_level"] = *r.SeverityLevel
	}
	if r.Priority != nil {
		updates["priority"] = *r.Priority
	}
	if r.IsActive != nil {
		updates["is_active"] = *r.IsActive
	}
	if r.Rule != nil {
		updates["rule"] = r.Rule.ToRule()
	}
	return updates
}

// EvaluateRequest carries the entity snapshot to check
type EvaluateRequest struct {
	EntityType string                 `json:"entity_type" validate:"required,max=50"`
	EntityID   int64                  `json:"entity_id" validate:"gte=0"`
	Data       map[string]interface{} `json:"data" validate:"required"`
}

// EvaluateResponse lists the breaches found by an evaluation
type EvaluateResponse struct {
	EntityType string                  `json:"entity_type"`
	EntityID   int64                   `json:"entity_id"`
	Violations []*constraint.Violation `json:"violations"`
	Count      int                     `json:"count"`
}

// ResolveViolationRequest represents a violation resolution request
type ResolveViolationRequest struct {
	Resolution string `json:"resolution" validate:"required"`
	ResolvedBy string `json:"resolved_by" validate:"required"`
}

// WaiveViolationRequest represents a violation waiver request
type WaiveViolationRequest struct {
	Reason     string `json:"reason" validate:"required"`
	ApprovedBy string `json:"approved_by" validate:"required"`
}

// CreateExceptionRequest represents a constraint exception request
type CreateExceptionRequest struct {
	EntityType string     `json:"entity_type" validate:"required,max=50"`
	EntityID   *int64     `json:"entity_id"`
	Reason     string     `json:"reason" validate:"required"`
	ApprovedBy string     `json:"approved_by" validate:"required"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

// CreateBufferRequest represents a buffer definition request
type CreateBufferRequest struct {
	Name               string  `json:"name" validate:"required,max=200"`
	BufferType         string  `json:"buffer_type" validate:"required,oneof=time stock"`
	BufferCategory     string  `json:"buffer_category" validate:"required,oneof=drum feeding shipping stock space capacity"`
	TargetSize         float64 `json:"target_size" validate:"gt=0"`
	UOM                string  `json:"uom"`
	RedZonePercent     float64 `json:"red_zone_percent" validate:"gte=0,lte=100"`
	YellowZonePercent  float64 `json:"yellow_zone_percent" validate:"gte=0,lte=100"`
	LocationEntityType string  `json:"location_entity_type"`
	LocationEntityID   *int64  `json:"location_entity_id"`
}

// ToDefinition converts the request into a buffer definition
func (r CreateBufferRequest) ToDefinition() *buffer.Definition {
	return &buffer.Definition{
		Name:               r.Name,
		BufferType:         r.BufferType,
		BufferCategory:     r.BufferCategory,
		TargetSize:         r.TargetSize,
		UOM:                r.UOM,
		RedZonePercent:     r.RedZonePercent,
		YellowZonePercent:  r.YellowZonePercent,
		LocationEntityType: r.LocationEntityType,
		LocationEntityID:   r.LocationEntityID,
	}
}

// UpdateBufferRequest represents a partial buffer definition update
type UpdateBufferRequest struct {
	Name               *string  `json:"name" validate:"omitempty,max=200"`
	BufferType         *string  `json:"buffer_type" validate:"omitempty,oneof=time stock"`
	BufferCategory     *string  `json:"buffer_category" validate:"omitempty,oneof=drum feeding shipping stock space capacity"`
	TargetSize         *float64 `json:"target_size"`
	UOM                *string  `json:"uom"`
	RedZonePercent     *float64 `json:"red_zone_percent"`
	YellowZonePercent  *float64 `json:"yellow_zone_percent"`
	LocationEntityType *string  `json:"location_entity_type"`
	LocationEntityID   *int64   `json:"location_entity_id"`
	IsActive           *bool    `json:"is_active"`
}

// Updates flattens the request into the service's update map
func (r UpdateBufferRequest) Updates() map[string]interface{} {
	updates := make(map[string]interface{})
	if r.Name != nil {
		updates["name"] = *r.Name
	}
	if r.BufferType != nil {
		updates["buffer_type"] = *r.BufferType
	}
	if r.BufferCategory != nil {
		updates["buffer_category"] = *r.BufferCategory
	}
	if r.TargetSize != nil {
		updates["target_size"] = *r.TargetSize
	}
	if r.UOM != nil {
		updates["uom"] = *r.UOM
	}
	if r.RedZonePercent != nil {
		updates["red_zone_percent"] = *r.RedZonePercent
	}
	if r.YellowZonePercent != nil {
		updates["yellow_zone_percent"] = *r.YellowZonePercent
	}
	if r.LocationEntityType != nil {
		updates["location_entity_type"] = *r.LocationEntityType
	}
	if r.LocationEntityID != nil {
		updates["location_entity_id"] = *r.LocationEntityID
	}
	if r.IsActive != nil {
		updates["is_active"] = *r.IsActive
	}
	return updates
}

// UpdateLevelRequest records a new observed buffer level
type UpdateLevelRequest struct {
	Level               *float64 `json:"level" validate:"required"`
	ConsumingEntityType string   `json:"consuming_entity_type" validate:"required_with=ConsumingEntityID"`
	ConsumingEntityID   *int64   `json:"consuming_entity_id"`
}

// Consumer returns the consuming entity, or nil when none was given
func (r UpdateLevelRequest) Consumer() *buffer.EntityRef {
	if r.ConsumingEntityType == "" || r.ConsumingEntityID == nil {
		return nil
	}
	return &buffer.EntityRef{Type: r.ConsumingEntityType, ID: *r.ConsumingEntityID}
}

// SetPolicyRequest represents a buffer policy upsert
type SetPolicyRequest struct {
	ReplenishmentRule           string   `json:"replenishment_rule" validate:"required"`
	ReplenishmentLeadTimeHours  float64  `json:"replenishment_lead_time_hours" validate:"gte=0"`
	EmergencyPenetrationPercent *float64 `json:"emergency_penetration_percent" validate:"omitempty,gt=0,lte=100"`
	IsActive                    *bool    `json:"is_active"`
}

// RegisterResourceRequest represents a resource registration
type RegisterResourceRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// RecordOperationRequest represents one operation run on a resource
type RecordOperationRequest struct {
	Name            string     `json:"name"`
	DurationMinutes float64    `json:"duration_minutes" validate:"gte=0"`
	PerformedAt     *time.Time `json:"performed_at"`
}

// DesignateDrumRequest represents a manual drum designation
type DesignateDrumRequest struct {
	DrumType string `json:"drum_type" validate:"omitempty,oneof=primary secondary potential"`
	Reason   string `json:"reason"`
	UserID   string `json:"user_id"`
}

// ClearDrumRequest represents a manual drum clearance
type ClearDrumRequest struct {
	Reason string `json:"reason"`
	UserID string `json:"user_id"`
}
