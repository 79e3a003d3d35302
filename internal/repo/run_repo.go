// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the AgentRun
// and AuditLog models.
//
// The audit log doubles as the write-once guard: a write step is considered
// executed for a run exactly when an audit row exists for (run_id, tool_name).
// HasAuditEntry is the query behind that guard.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-agent/internal/domain"
)

// CreateRun inserts a new agent run with its classified intent and serialized
// plan. The run starts non-finalized.
func CreateRun(ctx context.Context, db *gorm.DB, customerID, inputText string, intent domain.Intent, confidence float64, planJSON string) (*domain.AgentRun, error) {
	r := &domain.AgentRun{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		InputText:  inputText,
		Intent:     intent,
		Confidence: confidence,
		PlanJSON:   planJSON,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetRun fetches a run by ID with its audit logs preloaded in creation order.
func GetRun(ctx context.Context, db *gorm.DB, id string) (*domain.AgentRun, error) {
	var r domain.AgentRun
	err := db.WithContext(ctx).
		Preload("AuditLogs", func(q *gorm.DB) *gorm.DB { return q.Order("created_at asc, rowid asc") }).
		Where("id = ?", id).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestRunByCustomer returns the most recently created run for a customer
// with audit logs preloaded, or ErrNotFound when the customer has no runs.
func LatestRunByCustomer(ctx context.Context, db *gorm.DB, customerID string) (*domain.AgentRun, error) {
	var r domain.AgentRun
	err := db.WithContext(ctx).
		Preload("AuditLogs", func(q *gorm.DB) *gorm.DB { return q.Order("created_at asc, rowid asc") }).
		Where("customer_id = ?", customerID).
		Order("created_at desc, rowid desc").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetDraftReply stores the generated draft on the run row.
func SetDraftReply(ctx context.Context, db *gorm.DB, id, draft string) error {
	res := db.WithContext(ctx).Model(&domain.AgentRun{}).
		Where("id = ?", id).
		Update("draft_reply", draft)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FinalizeRun stamps finalized_at and records the reply that actually went
// out. It only touches runs that are still open, so a second finalization
// attempt reports ErrNotFound via RowsAffected.
func FinalizeRun(ctx context.Context, db *gorm.DB, id, finalReply string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.AgentRun{}).
		Where("id = ? AND finalized_at IS NULL", id).
		Updates(map[string]any{"final_reply": finalReply, "finalized_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendAudit inserts one audit row for a tool execution within a run.
func AppendAudit(ctx context.Context, db *gorm.DB, runID string, tool domain.Action, inputJSON, outputJSON string, success bool) (*domain.AuditLog, error) {
	a := &domain.AuditLog{
		ID:             uuid.NewString(),
		RunID:          runID,
		ToolName:       tool,
		ToolInputJSON:  inputJSON,
		ToolOutputJSON: outputJSON,
		Success:        success,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// ListAudit returns a run's audit rows in creation order.
func ListAudit(ctx context.Context, db *gorm.DB, runID string) ([]domain.AuditLog, error) {
	var out []domain.AuditLog
	err := db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at asc, rowid asc").
		Find(&out).Error
	return out, err
}

// HasAuditEntry reports whether the run already has an audit row for the
// given tool name.
func HasAuditEntry(ctx context.Context, db *gorm.DB, runID string, tool domain.Action) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.AuditLog{}).
		Where("run_id = ? AND tool_name = ?", runID, tool).
		Count(&n).Error
	return n > 0, err
}
