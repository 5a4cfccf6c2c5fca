package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ViolationService handles the violation workflow
type ViolationService struct {
	client *Client
}

// ViolationListOptions contains options for listing violations
type ViolationListOptions struct {
	ConstraintID int64
	EntityType   string
	EntityID     int64
	Severity     string
	Status       string
}

// List retrieves violations
func (s *ViolationService) List(ctx context.Context, opts *ViolationListOptions) ([]Violation, error) {
	query := url.Values{}
	if opts != nil {
		if opts.ConstraintID > 0 {
			query.Set("constraint_id", strconv.FormatInt(opts.ConstraintID, 10))
		}
		if opts.EntityType != "" {
			query.Set("entity_type", opts.EntityType)
		}
		if opts.EntityID > 0 {
			query.Set("entity_id", strconv.FormatInt(opts.EntityID, 10))
		}
		if opts.Severity != "" {
			query.Set("severity", opts.Severity)
		}
		if opts.Status != "" {
			query.Set("status", opts.Status)
		}
	}

	var items []Violation
	if err := s.client.doRequest(ctx, "GET", withQuery(apiPrefix+"/violations", query), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Get retrieves a violation by ID
func (s *ViolationService) Get(ctx context.Context, id int64) (*Violation, error) {
	var v Violation
	if err := s.client.doRequest(ctx, "GET", fmt.Sprintf("%s/violations/%d", apiPrefix, id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Summary returns violation counts by severity and status
func (s *ViolationService) Summary(ctx context.Context) (*ViolationSummary, error) {
	var summary ViolationSummary
	if err := s.client.doRequest(ctx, "GET", apiPrefix+"/violations/summary", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Resolve closes an open violation. An empty resolvedBy falls back to the client's user.
func (s *ViolationService) Resolve(ctx context.Context, id int64, resolution, resolvedBy string) (*Violation, error) {
	body := map[string]string{"resolution": resolution}
	if resolvedBy != "" {
		body["resolved_by"] = resolvedBy
	}

	var v Violation
	if err := s.client.doRequest(ctx, "POST", fmt.Sprintf("%s/violations/%d/resolve", apiPrefix, id), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Waive accepts an open violation. An empty approvedBy falls back to the client's user.
func (s *ViolationService) Waive(ctx context.Context, id int64, reason, approvedBy string) (*Violation, error) {
	body := map[string]string{"reason": reason}
	if approvedBy != "" {
		body["approved_by"] = approvedBy
	}

	var v Violation
	if err := s.client.doRequest(ctx, "POST", fmt.Sprintf("%s/violations/%d/waive", apiPrefix, id), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
