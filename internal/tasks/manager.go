// Package tasks runs periodic maintenance jobs, such as pruning expired rate limit
// windows, and keeps the output of their last run for operators.
package tasks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single run.
const DefaultTimeout = time.Minute

// Manager runs named maintenance tasks on an interval or on demand.
type Manager struct {
	mu    sync.RWMutex
	tasks map[string]*task
	now   func() time.Time

	// ctx is set by Start and used for triggered runs.
	ctx context.Context
}

func NewManager() *Manager {
	return &Manager{
		tasks: make(map[string]*task),
		now:   time.Now,
		ctx:   context.Background(),
	}
}

// Register adds a task, replacing one with the same name.
// Tasks with interval <= 0 only run when triggered.
func (m *Manager) Register(name string, interval time.Duration, fn TaskFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks[name] = &task{
		name:         name,
		interval:     interval,
		timeout:      DefaultTimeout,
		fn:           fn,
		now:          m.now,
		registeredAt: m.now(),
	}
}

// Start schedules every periodic task until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	periodic := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if t.interval > 0 {
			periodic = append(periodic, t)
		}
	}
	m.mu.Unlock()

	for _, t := range periodic {
		go m.schedule(ctx, t)
	}
	log.Debug().Int("periodic", len(periodic)).Msg("background tasks started")
}

func (m *Manager) schedule(ctx context.Context, t *task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.begin() {
				log.Warn().Str("task", t.name).Msg("previous run still in progress, skipping tick")
				continue
			}
			t.execute(ctx)
		}
	}
}

// Trigger starts a run of the named task in the background.
// It fails with ErrTaskRunning while a run is in progress.
func (m *Manager) Trigger(name string) error {
	t, ctx, err := m.lookup(name)
	if err != nil {
		return err
	}
	if !t.begin() {
		return fmt.Errorf("%w: %s", ErrTaskRunning, name)
	}
	go t.execute(ctx)
	return nil
}

// RunNow runs the named task and waits for it to finish. The task's own
// failure is recorded in its status, not returned.
func (m *Manager) RunNow(ctx context.Context, name string) error {
	t, _, err := m.lookup(name)
	if err != nil {
		return err
	}
	if !t.begin() {
		return fmt.Errorf("%w: %s", ErrTaskRunning, name)
	}
	t.execute(ctx)
	return nil
}

// ListStatus returns the status of all tasks ordered by name.
func (m *Manager) ListStatus() []TaskStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]TaskStatus, 0, len(m.tasks))
	for _, t := range m.tasks {
		list = append(list, t.status())
	}
	slices.SortFunc(list, func(a, b TaskStatus) int {
		return strings.Compare(a.Name, b.Name)
	})
	return list
}

// GetLogs returns the lines logged by the last run of the named task.
func (m *Manager) GetLogs(name string) ([]LogEntry, error) {
	t, _, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	return t.logs(), nil
}

func (m *Manager) lookup(name string) (*task, context.Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return t, m.ctx, nil
}
