// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Customer
// and Event models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a customer is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-agent/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateCustomer inserts a new Customer row with a UUID primary key and a
// UTC creation timestamp.
func CreateCustomer(ctx context.Context, db *gorm.DB, name, email, company string) (*domain.Customer, error) {
	c := &domain.Customer{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Company:   company,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListCustomers returns all customers ordered by creation time ascending,
// so the seeded demo accounts keep a stable display order.
func ListCustomers(ctx context.Context, db *gorm.DB) ([]domain.Customer, error) {
	var out []domain.Customer
	err := db.WithContext(ctx).Order("created_at asc").Find(&out).Error
	return out, err
}

// GetCustomer fetches a single customer by ID, or ErrNotFound if missing.
func GetCustomer(ctx context.Context, db *gorm.DB, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountCustomers returns the total number of customer rows. The seed
// endpoint uses it to stay idempotent.
func CountCustomers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Customer{}).Count(&n).Error
	return n, err
}

// CreateEvent inserts a customer activity record.
func CreateEvent(ctx context.Context, db *gorm.DB, customerID, eventType, description, metadataJSON string) (*domain.Event, error) {
	e := &domain.Event{
		ID:           uuid.NewString(),
		CustomerID:   customerID,
		EventType:    eventType,
		Description:  description,
		MetadataJSON: metadataJSON,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// RecentEvents returns up to limit events for a customer, newest first.
func RecentEvents(ctx context.Context, db *gorm.DB, customerID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []domain.Event
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
