package client

import (
	"context"

	"github.com/8b-is/feedgate/internal/api"
	"github.com/8b-is/feedgate/internal/tasks"
)

// ListTasks returns the status of every background task, ordered by name.
func (c *Client) ListTasks(ctx context.Context) ([]tasks.TaskStatus, string, error) {
	var res []tasks.TaskStatus
	correlation, err := c.get(ctx, c.url().
		setPath(api.TasksRoute).
		build(), &res)
	return res, correlation, err
}

// TriggerTask starts a run without waiting for it. A task that is already
// running is answered with 409.
func (c *Client) TriggerTask(ctx context.Context, name string) (string, error) {
	return c.post(ctx, c.url().
		setPath(api.TriggerRoute).
		setPathParam("name", name).
		build(), nil, nil)
}

// GetTaskLogs returns the lines logged by the last run of a task.
func (c *Client) GetTaskLogs(ctx context.Context, name string) ([]tasks.LogEntry, string, error) {
	var res []tasks.LogEntry
	correlation, err := c.get(ctx, c.url().
		setPath(api.TaskLogRoute).
		setPathParam("name", name).
		build(), &res)
	return res, correlation, err
}
