package client

import (
	"context"

	"github.com/8b-is/feedgate/internal/api"
)

// Login exchanges admin credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (*api.TokenResponse, string, error) {
	var resp api.TokenResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.LoginRoute).
		build(), api.LoginRequest{Username: username, Password: password}, &resp)
	return &resp, correlation, err
}

// ExchangeToken exchanges an agent id and secret for a session token.
func (c *Client) ExchangeToken(ctx context.Context, agentID, secret string) (*api.TokenResponse, string, error) {
	var resp api.TokenResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.TokenRoute).
		build(), api.TokenRequest{AgentID: agentID, APIKey: secret}, &resp)
	return &resp, correlation, err
}

// Verify describes the caller the client authenticates as.
func (c *Client) Verify(ctx context.Context) (*api.VerifyResponse, string, error) {
	var resp api.VerifyResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.VerifyRoute).
		build(), &resp)
	return &resp, correlation, err
}

// Quota returns the caller's current rate limit quota.
func (c *Client) Quota(ctx context.Context) (*api.QuotaResponse, string, error) {
	var resp api.QuotaResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.QuotaRoute).
		build(), &resp)
	return &resp, correlation, err
}
