package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/8b-is/feedgate/internal/api"
	"github.com/8b-is/feedgate/internal/buildinfo"
)

// Info returns the build information of the server.
func (c *Client) Info(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	return &info, correlation, err
}

// Health reports whether the server answers its liveness check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url().setPath(api.HealthCheckRoute).build(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.decorate(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
