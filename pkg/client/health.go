package client

import "context"

// Health checks the liveness of the API
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doRequest(ctx, "GET", "/healthz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Ready checks that the API's database answers and its schema is current
func (c *Client) Ready(ctx context.Context) (*ReadinessResponse, error) {
	var ready ReadinessResponse
	if err := c.doRequest(ctx, "GET", "/readyz", nil, &ready); err != nil {
		return nil, err
	}
	return &ready, nil
}

// Ping is a simple connectivity test
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}
