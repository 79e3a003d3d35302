// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Ticket
// model.
//
// Status filter semantics follow the support-desk convention: "open" matches
// both open and in_progress rows, "closed" matches closed rows, "all" (or an
// empty filter) matches everything.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-agent/internal/domain"
)

// ErrTicketClosed indicates an attempt to close a ticket that is already
// closed. Ticket status is monotonic, so the transition is rejected.
var ErrTicketClosed = errors.New("ticket already closed")

// CreateTicket inserts a new ticket in the open state.
func CreateTicket(ctx context.Context, db *gorm.DB, customerID, title, description string, priority domain.TicketPriority, category string) (*domain.Ticket, error) {
	if !priority.Valid() {
		priority = domain.PriorityMedium
	}
	now := time.Now().UTC()
	t := &domain.Ticket{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		Title:       title,
		Description: description,
		Status:      domain.TicketOpen,
		Priority:    priority,
		Category:    category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetTicket fetches a single ticket by ID, or ErrNotFound if missing.
func GetTicket(ctx context.Context, db *gorm.DB, id string) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func applyStatusFilter(q *gorm.DB, status string) *gorm.DB {
	switch status {
	case "open":
		return q.Where("status IN ?", []domain.TicketStatus{domain.TicketOpen, domain.TicketInProgress})
	case "closed":
		return q.Where("status = ?", domain.TicketClosed)
	default: // "all" or empty
		return q
	}
}

// ListTickets returns a customer's tickets, newest first, optionally filtered
// by the open/closed/all status shorthand.
func ListTickets(ctx context.Context, db *gorm.DB, customerID, status string) ([]domain.Ticket, error) {
	q := db.WithContext(ctx).Where("customer_id = ?", customerID)
	q = applyStatusFilter(q, status)
	var out []domain.Ticket
	err := q.Order("created_at desc").Find(&out).Error
	return out, err
}

// ListAllTickets returns tickets across every customer, newest first, with
// the owning Customer preloaded for display.
func ListAllTickets(ctx context.Context, db *gorm.DB, status string) ([]domain.Ticket, error) {
	q := applyStatusFilter(db.WithContext(ctx), status)
	var out []domain.Ticket
	err := q.Preload("Customer").Order("created_at desc").Find(&out).Error
	return out, err
}

// CloseTicket marks a ticket closed and stamps closed_at. It returns
// ErrNotFound for a missing ticket and ErrTicketClosed when the ticket has
// already been closed; closed_at is never overwritten.
func CloseTicket(ctx context.Context, db *gorm.DB, id string) (*domain.Ticket, error) {
	t, err := GetTicket(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TicketClosed {
		return nil, ErrTicketClosed
	}
	now := time.Now().UTC()
	t.Status = domain.TicketClosed
	t.ClosedAt = &now
	t.UpdatedAt = now
	if err := db.WithContext(ctx).Model(&domain.Ticket{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": domain.TicketClosed, "closed_at": now, "updated_at": now}).Error; err != nil {
		return nil, err
	}
	return t, nil
}
