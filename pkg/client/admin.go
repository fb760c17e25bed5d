package client

import (
	"context"

	"github.com/8b-is/feedgate/internal/api"
	"github.com/8b-is/feedgate/internal/service"
)

func (c *Client) ListAgents(ctx context.Context) ([]service.IdentitySummary, string, error) {
	var resp []service.IdentitySummary
	correlation, err := c.get(ctx, c.url().
		setPath(api.AgentsRoute).
		build(), &resp)
	return resp, correlation, err
}

// CreateAgent registers a new agent. The returned secret is only shown once.
func (c *Client) CreateAgent(ctx context.Context, req service.CreateIdentityRequest) (*service.CreatedIdentity, string, error) {
	var resp service.CreatedIdentity
	correlation, err := c.post(ctx, c.url().
		setPath(api.AgentsRoute).
		build(), req, &resp)
	return &resp, correlation, err
}

func (c *Client) DeleteAgent(ctx context.Context, id string) (string, error) {
	return c.delete(ctx, c.url().
		setPath(api.AgentRoute).
		setPathParam("id", id).
		build(), nil)
}
