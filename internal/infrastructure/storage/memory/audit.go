package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "purchasing/internal/core/context"
	"purchasing/internal/core/id"
	"purchasing/internal/domain/audit"
)

// AuditRepo implements audit.Recorder.
type AuditRepo struct {
	s *Store
}

var _ audit.Recorder = (*AuditRepo)(nil)

func (r *AuditRepo) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.audit = append(r.s.audit, audit.Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		Changes:    raw,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

func (r *AuditRepo) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]audit.Entry, 0)
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		e := r.s.audit[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
