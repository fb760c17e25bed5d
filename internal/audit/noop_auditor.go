package audit

import (
	"fmt"

	"github.com/8b-is/feedgate/internal/config"
	"github.com/8b-is/feedgate/internal/core"
)

// NoopAuditor drops every entry. It is used when auditing is disabled.
type NoopAuditor struct{}

func (NoopAuditor) Log(core.AuditEntry) error { return nil }

func (NoopAuditor) Close() error { return nil }

// New builds the auditor described by cfg.
func New(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NoopAuditor{}, nil
	}
	switch cfg.Type {
	case "", config.AuditMemory:
		return NewInMemoryAuditor(0), nil
	case config.AuditFile:
		a, err := NewFileAuditor(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("creating file auditor: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Type)
	}
}
