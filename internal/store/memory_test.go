package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/8b-is/feedgate/internal/core"
)

func correlationIDs(records []core.TokenMetadata) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.CorrelationID)
	}
	return ids
}

func TestInMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	s := NewInMemoryTokenStore().WithClock(func() time.Time { return now })

	records := []core.TokenMetadata{
		{CorrelationID: "1", Subject: "agent_a", Fingerprint: "fp1", IssuedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)},
		{CorrelationID: "2", Subject: "agent_b", Fingerprint: "fp2", IssuedAt: now.Add(-time.Hour), ExpiresAt: now.Add(23 * time.Hour)},
		{CorrelationID: "3", Subject: "admin_root", Fingerprint: "fp3", IssuedAt: now, ExpiresAt: now.Add(24 * time.Hour)},
		{CorrelationID: "4", Subject: "agent_c", Fingerprint: "fp4", IssuedAt: now.Add(-24 * time.Hour), ExpiresAt: now},
	}
	for _, r := range records {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error: %v", err)
	}
	if diff := cmp.Diff([]string{"3", "2"}, correlationIDs(active)); diff != "" {
		t.Fatalf("ListActive() mismatch (-want +got):\n%s", diff)
	}

	deleted, err := s.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteExpired() = %d, want 2", deleted)
	}
	if s.Len() != 2 {
		t.Errorf("Len() after delete = %d, want 2", s.Len())
	}
}

func TestInMemoryTokenStore_Capacity(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	s := NewInMemoryTokenStore().WithClock(func() time.Time { return now }).WithCapacity(2)

	for i, fp := range []string{"a", "b", "c"} {
		_ = s.Save(ctx, core.TokenMetadata{
			CorrelationID: fp,
			Fingerprint:   fp,
			IssuedAt:      now.Add(time.Duration(i) * time.Minute),
			ExpiresAt:     now.Add(time.Hour),
		})
	}
	// same fingerprint replaces instead of growing
	_ = s.Save(ctx, core.TokenMetadata{CorrelationID: "c2", Fingerprint: "c", IssuedAt: now.Add(5 * time.Minute), ExpiresAt: now.Add(time.Hour)})

	active, _ := s.ListActive(ctx)
	if diff := cmp.Diff([]string{"c2", "b"}, correlationIDs(active)); diff != "" {
		t.Errorf("ListActive() mismatch (-want +got):\n%s", diff)
	}
}
