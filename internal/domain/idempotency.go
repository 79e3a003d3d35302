package domain

import "time"

// Idempotency represents a recorded result of a previously processed request,
// keyed by (customer_id, scope, key). Scope names the operation family
// ("send", "approve") so the same client key can be reused across endpoints.
// It enables safe retries for POST operations by returning the originally
// produced response without re-executing side effects.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	CustomerID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_customer_scope_key,priority:1"`
	Scope      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_customer_scope_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_customer_scope_key,priority:3"`
	RunID      string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
