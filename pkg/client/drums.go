package client

import (
	"context"
	"fmt"
	"time"
)

// DrumService handles drum analysis and resource calls
type DrumService struct {
	client *Client
}

// Analyze scores every resource and applies automated designations
func (s *DrumService) Analyze(ctx context.Context) (*DrumAnalysis, error) {
	var result DrumAnalysis
	if err := s.client.doRequest(ctx, "POST", apiPrefix+"/drums/analyze", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// List retrieves the resources currently designated as drums
func (s *DrumService) List(ctx context.Context) ([]Resource, error) {
	var items []Resource
	if err := s.client.doRequest(ctx, "GET", apiPrefix+"/drums", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// History lists the newest analyzer ledger entries
func (s *DrumService) History(ctx context.Context, limit int) ([]DrumHistory, error) {
	var items []DrumHistory
	if err := s.client.doRequest(ctx, "GET", apiPrefix+"/drums/history"+limitQuery(limit), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Utilization scores every resource without changing any designation
func (s *DrumService) Utilization(ctx context.Context) ([]DrumRecommendation, error) {
	var items []DrumRecommendation
	if err := s.client.doRequest(ctx, "GET", apiPrefix+"/resources/utilization", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// RegisterResource adds a resource the analyzer can score
func (s *DrumService) RegisterResource(ctx context.Context, name string) (*Resource, error) {
	var r Resource
	if err := s.client.doRequest(ctx, "POST", apiPrefix+"/resources", map[string]string{"name": name}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordOperation logs a unit of work on a resource; a zero performedAt means now
func (s *DrumService) RecordOperation(ctx context.Context, resourceID int64, name string, durationMinutes float64, performedAt time.Time) (*Operation, error) {
	body := map[string]interface{}{
		"name":             name,
		"duration_minutes": durationMinutes,
	}
	if !performedAt.IsZero() {
		body["performed_at"] = performedAt
	}

	var op Operation
	path := fmt.Sprintf("%s/resources/%d/operations", apiPrefix, resourceID)
	if err := s.client.doRequest(ctx, "POST", path, body, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// Designate marks a resource as a drum. Empty drumType means primary.
func (s *DrumService) Designate(ctx context.Context, resourceID int64, drumType, reason string) (*Resource, error) {
	body := map[string]string{}
	if drumType != "" {
		body["drum_type"] = drumType
	}
	if reason != "" {
		body["reason"] = reason
	}

	var r Resource
	path := fmt.Sprintf("%s/resources/%d/drum", apiPrefix, resourceID)
	if err := s.client.doRequest(ctx, "POST", path, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Clear removes a resource's drum designation
func (s *DrumService) Clear(ctx context.Context, resourceID int64, reason string) (*Resource, error) {
	var body interface{}
	if reason != "" {
		body = map[string]string{"reason": reason}
	}

	var r Resource
	path := fmt.Sprintf("%s/resources/%d/drum", apiPrefix, resourceID)
	if err := s.client.doRequest(ctx, "DELETE", path, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
