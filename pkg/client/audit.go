package client

import (
	"context"

	"github.com/8b-is/feedgate/internal/api"
	"github.com/8b-is/feedgate/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	// Action filters by audit action, e.g. "auth.login".
	Action string
}

// ListAudits retrieves the latest audit entries from the server.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.AuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.Action != "" {
		ub = ub.addQueryParam("action", opts.Action)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}

// ListActiveTokens retrieves the list of currently active tokens from the server.
func (c *Client) ListActiveTokens(ctx context.Context) ([]core.TokenMetadata, string, error) {
	var resp []core.TokenMetadata
	correlation, err := c.get(ctx, c.url().
		setPath(api.TokensRoute).
		build(), &resp)
	return resp, correlation, err
}
