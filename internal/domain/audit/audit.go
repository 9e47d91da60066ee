// Package audit records who changed a purchase order and how.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"purchasing/internal/core/id"
	"purchasing/pkg/logger"
)

// Action is the kind of audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionCancel  Action = "cancel"
	ActionReceive Action = "receive"
	ActionReturn  Action = "return"
	ActionPayment Action = "payment"
)

// Entry is one audit record.
type Entry struct {
	ID         id.ID           `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   id.ID           `db:"entity_id" json:"entityId"`
	Action     Action          `db:"action" json:"action"`
	UserID     string          `db:"user_id" json:"userId"`
	Changes    json.RawMessage `db:"changes" json:"changes"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// Recorder persists and reads audit entries.
type Recorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// Record writes an entry and only logs a failure: audit never fails a business call.
func Record(ctx context.Context, r Recorder, entityType string, entityID id.ID, action Action, changes map[string]any) {
	if r == nil {
		return
	}
	if err := r.LogChange(ctx, entityType, entityID, action, changes); err != nil {
		logger.Warn(ctx, "audit record failed",
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", err,
		)
	}
}
