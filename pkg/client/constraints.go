package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ConstraintService handles constraint, exception and evaluation calls
type ConstraintService struct {
	client *Client
}

// CreateConstraintRequest represents a request to author a constraint
type CreateConstraintRequest struct {
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	Category      string `json:"category" yaml:"category"`
	Scope         string `json:"scope,omitempty" yaml:"scope,omitempty"`
	ScopeEntityID *int64 `json:"scope_entity_id,omitempty" yaml:"scope_entity_id,omitempty"`
	SeverityLevel string `json:"severity_level,omitempty" yaml:"severity_level,omitempty"`
	Priority      string `json:"priority,omitempty" yaml:"priority,omitempty"`
	IsActive      *bool  `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	Rule          Rule   `json:"rule" yaml:"rule"`
}

// UpdateConstraintRequest represents a partial constraint update
type UpdateConstraintRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Category      *string `json:"category,omitempty"`
	Scope         *string `json:"scope,omitempty"`
	ScopeEntityID *int64  `json:"scope_entity_id,omitempty"`
	SeverityLevel *string `json:"severity_level,omitempty"`
	Priority      *string `json:"priority,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
	Rule          *Rule   `json:"rule,omitempty"`
}

// ConstraintListOptions contains options for listing constraints
type ConstraintListOptions struct {
	Category   string
	Scope      string
	ActiveOnly bool
}

// CreateExceptionRequest represents a request to waive a constraint for an entity
type CreateExceptionRequest struct {
	EntityType string     `json:"entity_type"`
	EntityID   *int64     `json:"entity_id,omitempty"`
	Reason     string     `json:"reason"`
	ApprovedBy string     `json:"approved_by"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// List retrieves constraints
func (s *ConstraintService) List(ctx context.Context, opts *ConstraintListOptions) ([]Constraint, error) {
	query := url.Values{}
	if opts != nil {
		if opts.Category != "" {
			query.Set("category", opts.Category)
		}
		if opts.Scope != "" {
			query.Set("scope", opts.Scope)
		}
		if opts.ActiveOnly {
			query.Set("active", "true")
		}
	}

	var constraints []Constraint
	if err := s.client.doRequest(ctx, "GET", withQuery(apiPrefix+"/constraints", query), nil, &constraints); err != nil {
		return nil, err
	}
	return constraints, nil
}

// Get retrieves a constraint by ID
func (s *ConstraintService) Get(ctx context.Context, id int64) (*Constraint, error) {
	var c Constraint
	if err := s.client.doRequest(ctx, "GET", fmt.Sprintf("%s/constraints/%d", apiPrefix, id), nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create authors a new constraint
func (s *ConstraintService) Create(ctx context.Context, req CreateConstraintRequest) (*Constraint, error) {
	var c Constraint
	if err := s.client.doRequest(ctx, "POST", apiPrefix+"/constraints", req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update changes a constraint; the server bumps its version
func (s *ConstraintService) Update(ctx context.Context, id int64, req UpdateConstraintRequest) (*Constraint, error) {
	var c Constraint
	if err := s.client.doRequest(ctx, "PUT", fmt.Sprintf("%s/constraints/%d", apiPrefix, id), req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Deactivate soft-deletes a constraint
func (s *ConstraintService) Deactivate(ctx context.Context, id int64) error {
	return s.client.doRequest(ctx, "DELETE", fmt.Sprintf("%s/constraints/%d", apiPrefix, id), nil, nil)
}

// Evaluate checks an entity snapshot against every applicable constraint
func (s *ConstraintService) Evaluate(ctx context.Context, entityType string, entityID int64, data map[string]interface{}) (*EvaluationResult, error) {
	body := map[string]interface{}{
		"entity_type": entityType,
		"entity_id":   entityID,
		"data":        data,
	}

	var result EvaluationResult
	if err := s.client.doRequest(ctx, "POST", apiPrefix+"/evaluate", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListExceptions lists a constraint's exceptions
func (s *ConstraintService) ListExceptions(ctx context.Context, constraintID int64) ([]Exception, error) {
	var items []Exception
	path := fmt.Sprintf("%s/constraints/%d/exceptions", apiPrefix, constraintID)
	if err := s.client.doRequest(ctx, "GET", path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateException waives a constraint for an entity
func (s *ConstraintService) CreateException(ctx context.Context, constraintID int64, req CreateExceptionRequest) (*Exception, error) {
	var e Exception
	path := fmt.Sprintf("%s/constraints/%d/exceptions", apiPrefix, constraintID)
	if err := s.client.doRequest(ctx, "POST", path, req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DeactivateException withdraws an exception
func (s *ConstraintService) DeactivateException(ctx context.Context, id int64) error {
	return s.client.doRequest(ctx, "DELETE", apiPrefix+"/exceptions/"+strconv.FormatInt(id, 10), nil, nil)
}
