package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// BufferService handles buffer definitions and level observations
type BufferService struct {
	client *Client
}

// CreateBufferRequest represents a request to define a buffer
type CreateBufferRequest struct {
	Name               string  `json:"name"`
	BufferType         string  `json:"buffer_type"`
	BufferCategory     string  `json:"buffer_category"`
	TargetSize         float64 `json:"target_size"`
	UOM                string  `json:"uom,omitempty"`
	RedZonePercent     float64 `json:"red_zone_percent"`
	YellowZonePercent  float64 `json:"yellow_zone_percent"`
	LocationEntityType string  `json:"location_entity_type,omitempty"`
	LocationEntityID   *int64  `json:"location_entity_id,omitempty"`
}

// UpdateBufferRequest represents a partial buffer update
type UpdateBufferRequest struct {
	Name              *string  `json:"name,omitempty"`
	TargetSize        *float64 `json:"target_size,omitempty"`
	UOM               *string  `json:"uom,omitempty"`
	RedZonePercent    *float64 `json:"red_zone_percent,omitempty"`
	YellowZonePercent *float64 `json:"yellow_zone_percent,omitempty"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

// SetPolicyRequest represents a replenishment policy upsert
type SetPolicyRequest struct {
	ReplenishmentRule           string   `json:"replenishment_rule"`
	ReplenishmentLeadTimeHours  float64  `json:"replenishment_lead_time_hours"`
	EmergencyPenetrationPercent *float64 `json:"emergency_penetration_percent,omitempty"`
	IsActive                    *bool    `json:"is_active,omitempty"`
}

// BufferListOptions contains options for listing buffers
type BufferListOptions struct {
	BufferType     string
	BufferCategory string
	ActiveOnly     bool
}

func (s *BufferService) path(id int64, suffix string) string {
	return fmt.Sprintf("%s/buffers/%d%s", apiPrefix, id, suffix)
}

// List retrieves buffer definitions
func (s *BufferService) List(ctx context.Context, opts *BufferListOptions) ([]Buffer, error) {
	query := url.Values{}
	if opts != nil {
		if opts.BufferType != "" {
			query.Set("buffer_type", opts.BufferType)
		}
		if opts.BufferCategory != "" {
			query.Set("buffer_category", opts.BufferCategory)
		}
		if opts.ActiveOnly {
			query.Set("active", "true")
		}
	}

	var items []Buffer
	if err := s.client.doRequest(ctx, "GET", withQuery(apiPrefix+"/buffers", query), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Get retrieves a buffer definition
func (s *BufferService) Get(ctx context.Context, id int64) (*Buffer, error) {
	var b Buffer
	if err := s.client.doRequest(ctx, "GET", s.path(id, ""), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create defines a new buffer
func (s *BufferService) Create(ctx context.Context, req CreateBufferRequest) (*Buffer, error) {
	var b Buffer
	if err := s.client.doRequest(ctx, "POST", apiPrefix+"/buffers", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Update changes a buffer definition
func (s *BufferService) Update(ctx context.Context, id int64, req UpdateBufferRequest) (*Buffer, error) {
	var b Buffer
	if err := s.client.doRequest(ctx, "PUT", s.path(id, ""), req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateLevel records a new observed level; consumer may be nil
func (s *BufferService) UpdateLevel(ctx context.Context, id int64, level float64, consumer *EntityRef) (*Consumption, error) {
	body := map[string]interface{}{"level": level}
	if consumer != nil {
		body["consuming_entity_type"] = consumer.Type
		body["consuming_entity_id"] = consumer.ID
	}

	var c Consumption
	if err := s.client.doRequest(ctx, "POST", s.path(id, "/level"), body, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Health analyses a buffer's recent observations
func (s *BufferService) Health(ctx context.Context, id int64) (*BufferHealth, error) {
	var h BufferHealth
	if err := s.client.doRequest(ctx, "GET", s.path(id, "/health"), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Alerts lists buffers currently outside their green zone
func (s *BufferService) Alerts(ctx context.Context) ([]BufferAlert, error) {
	var alerts []BufferAlert
	if err := s.client.doRequest(ctx, "GET", apiPrefix+"/buffers/alerts", nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Consumptions lists a buffer's newest observations
func (s *BufferService) Consumptions(ctx context.Context, id int64, limit int) ([]Consumption, error) {
	var items []Consumption
	if err := s.client.doRequest(ctx, "GET", s.path(id, "/consumptions"+limitQuery(limit)), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// History lists a buffer's newest zone changes
func (s *BufferService) History(ctx context.Context, id int64, limit int) ([]ZoneChange, error) {
	var items []ZoneChange
	if err := s.client.doRequest(ctx, "GET", s.path(id, "/history"+limitQuery(limit)), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetPolicy creates or replaces a buffer's replenishment policy
func (s *BufferService) SetPolicy(ctx context.Context, id int64, req SetPolicyRequest) (*BufferPolicy, error) {
	var p BufferPolicy
	if err := s.client.doRequest(ctx, "PUT", s.path(id, "/policy"), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func limitQuery(limit int) string {
	if limit <= 0 {
		return ""
	}
	return "?limit=" + strconv.Itoa(limit)
}
