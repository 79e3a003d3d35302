// Package services – CustomerService and MessageService
//
// CustomerService exposes the customer directory and the demo-data seeder.
// MessageService returns a customer's conversation history in chronological
// order; message creation goes through AgentService, which owns the
// orchestration pipeline.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/repo"
)

// CustomerService provides read access to customers and seeding.
type CustomerService struct {
	DB *gorm.DB
}

// List returns every customer in stable creation order.
func (s *CustomerService) List(ctx context.Context) ([]domain.Customer, error) {
	tr := otel.Tracer("services/CustomerService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return repo.ListCustomers(ctx, s.DB)
}

// Get returns a single customer or ErrCustomerNotFound.
func (s *CustomerService) Get(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := repo.GetCustomer(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return c, nil
}

// Seed inserts the demo dataset once; repeat calls are no-ops.
func (s *CustomerService) Seed(ctx context.Context) (repo.SeedCounts, bool, error) {
	tr := otel.Tracer("services/CustomerService")
	ctx, span := tr.Start(ctx, "Seed")
	defer span.End()

	return repo.Seed(ctx, s.DB)
}

// MessageService provides conversation history reads.
type MessageService struct {
	DB *gorm.DB
}

// List returns the customer's conversation, oldest first.
func (s *MessageService) List(ctx context.Context, customerID string) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	if _, err := repo.GetCustomer(ctx, s.DB, customerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return repo.ListMessages(ctx, s.DB, customerID)
}
