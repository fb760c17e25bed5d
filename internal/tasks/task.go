package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/8b-is/feedgate/internal/logging"
)

// MaxLogLines bounds the log kept for the last run of a task.
const MaxLogLines = 500

type task struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fn       TaskFunc
	now      func() time.Time

	registeredAt time.Time

	mu           sync.RWMutex
	running      bool
	runs         int
	failures     int
	lastRun      time.Time
	lastDuration time.Duration
	lastErr      error
	lines        []LogEntry
}

// begin marks the task as running. It reports false if a run is in progress.
func (t *task) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	t.lines = t.lines[:0]
	return true
}

// execute runs fn once. The caller must have called begin.
func (t *task) execute(ctx context.Context) {
	zl := log.With().Str("task", t.name).Logger()
	logger := logging.Tee{logging.Zerolog(zl), t.record}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := t.now()
	err := t.fn(ctx, logger)
	elapsed := t.now().Sub(start)

	if err != nil {
		logger.Error("failed after %s: %v", elapsed.Round(time.Millisecond), err)
	} else {
		logger.Debug("finished in %s", elapsed.Round(time.Millisecond))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.runs++
	if err != nil {
		t.failures++
	}
	t.lastRun = start
	t.lastDuration = elapsed
	t.lastErr = err
}

func (t *task) record(level zerolog.Level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.lines) == MaxLogLines {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:MaxLogLines-1]
	}
	t.lines = append(t.lines, LogEntry{
		Time:    t.now(),
		Level:   level.String(),
		Message: msg,
	})
}

func (t *task) status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := TaskStatus{
		Name:     t.name,
		Running:  t.running,
		Runs:     t.runs,
		Failures: t.failures,
		LastRun:  t.lastRun,
	}
	if t.runs > 0 {
		s.LastDuration = t.lastDuration.Round(time.Millisecond).String()
		if t.lastErr != nil {
			s.LastResult = fmt.Sprintf("failed: %v", t.lastErr)
		} else {
			s.LastResult = "success"
		}
	}
	if t.interval > 0 {
		s.Interval = t.interval.String()
		if t.lastRun.IsZero() {
			s.NextRun = t.registeredAt.Add(t.interval)
		} else {
			s.NextRun = t.lastRun.Add(t.interval)
		}
	}
	return s
}

func (t *task) logs() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]LogEntry(nil), t.lines...)
}
