package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/8b-is/feedgate/internal/logging"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is already running")
)

// TaskFunc is the unit of work.
// Lines logged through logger are kept with the task until its next run.
type TaskFunc func(ctx context.Context, logger logging.Leveled) error

type TaskStatus struct {
	Name     string `json:"name"`
	Running  bool   `json:"running,omitempty"`
	Interval string `json:"interval,omitempty"`

	Runs     int `json:"runs"`
	Failures int `json:"failures"`

	LastRun      time.Time `json:"last_run"`
	LastDuration string    `json:"last_duration,omitempty"`
	LastResult   string    `json:"last_result,omitempty"`
	NextRun      time.Time `json:"next_run"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
}
