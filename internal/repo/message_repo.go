// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model (conversation history).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-agent/internal/domain"
)

// CreateMessage inserts a conversation message for a customer. Subject may be
// nil for chat-channel messages.
func CreateMessage(ctx context.Context, db *gorm.DB, customerID string, direction domain.Direction, channel domain.Channel, subject *string, body string) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Direction:  direction,
		Channel:    channel,
		Subject:    subject,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns the full conversation for a customer in chronological
// order (oldest first). Rows sharing a timestamp fall back to insertion order
// via the rowid tiebreaker.
func ListMessages(ctx context.Context, db *gorm.DB, customerID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at asc, rowid asc").
		Find(&out).Error
	return out, err
}

// CountMessages returns the number of messages stored for a customer.
func CountMessages(ctx context.Context, db *gorm.DB, customerID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Message{}).
		Where("customer_id = ?", customerID).
		Count(&n).Error
	return n, err
}
