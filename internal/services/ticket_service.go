// Package services – TicketService
//
// TicketService owns the ticket endpoints outside the agent write path:
// listing with the open/closed/all status shorthand, manual creation, and
// closing. Closing is monotonic; a closed ticket stays closed and keeps its
// original closed_at.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/repo"
)

// TicketService provides ticket CRUD operations.
type TicketService struct {
	DB *gorm.DB
}

func normalizeStatusFilter(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "open":
		return "open"
	case "closed":
		return "closed"
	default:
		return "all"
	}
}

// ListForCustomer returns a customer's tickets, newest first.
func (s *TicketService) ListForCustomer(ctx context.Context, customerID, status string) ([]domain.Ticket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "ListForCustomer",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	if _, err := repo.GetCustomer(ctx, s.DB, customerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return repo.ListTickets(ctx, s.DB, customerID, normalizeStatusFilter(status))
}

// ListAll returns tickets across all customers with their owner embedded,
// newest first.
func (s *TicketService) ListAll(ctx context.Context, status string) ([]domain.Ticket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "ListAll")
	defer span.End()

	return repo.ListAllTickets(ctx, s.DB, normalizeStatusFilter(status))
}

// Create opens a new ticket for a customer. Title is required; priority
// falls back to medium when missing or unknown.
func (s *TicketService) Create(ctx context.Context, customerID, title, description, priority, category string) (*domain.Ticket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	if _, err := repo.GetCustomer(ctx, s.DB, customerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Support Ticket"
	}
	return repo.CreateTicket(ctx, s.DB, customerID, title, description, domain.TicketPriority(priority), category)
}

// Close marks a ticket closed. customerID is optional; when provided, the
// ticket must belong to that customer.
func (s *TicketService) Close(ctx context.Context, ticketID, customerID string) (*domain.Ticket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "Close",
		trace.WithAttributes(attribute.String("ticket.id", ticketID)),
	)
	defer span.End()

	t, err := repo.GetTicket(ctx, s.DB, ticketID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if customerID != "" && t.CustomerID != customerID {
		return nil, ErrTicketNotFound
	}

	closed, err := repo.CloseTicket(ctx, s.DB, ticketID)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrTicketNotFound
		case errors.Is(err, repo.ErrTicketClosed):
			return nil, ErrTicketClosed
		default:
			return nil, err
		}
	}
	return closed, nil
}
