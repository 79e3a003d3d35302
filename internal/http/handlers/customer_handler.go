// Customer HTTP handlers.
//
// This file exposes REST endpoints for the customer directory and the demo
// data seeder:
//   - GET  /customers   (list)
//   - POST /seed        (idempotent demo data)
//
// It also declares the service contracts consumed by every handler in this
// package and the Handlers aggregate they hang off. Handlers are
// transport-thin: they validate input, call application services, and
// translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/gmail"
	"github.com/tbourn/go-support-agent/internal/kb"
	"github.com/tbourn/go-support-agent/internal/repo"
	"github.com/tbourn/go-support-agent/internal/services"
)

//
// Service contracts (context-aware)
//

// CustomerService defines customer directory operations consumed by HTTP
// handlers. Implementations should be safe for concurrent use and must honor
// the provided context for cancellation and timeouts.
type CustomerService interface {
	// List returns every customer in stable creation order.
	List(ctx context.Context) ([]domain.Customer, error)
	// Get returns one customer or services.ErrCustomerNotFound.
	Get(ctx context.Context, id string) (*domain.Customer, error)
	// Seed inserts the demo dataset once; repeat calls are no-ops.
	Seed(ctx context.Context) (repo.SeedCounts, bool, error)
}

// MessageService defines conversation history reads.
type MessageService interface {
	// List returns a customer's conversation, oldest first.
	List(ctx context.Context, customerID string) ([]domain.Message, error)
}

// TicketService defines ticket operations outside the agent write path.
type TicketService interface {
	ListForCustomer(ctx context.Context, customerID, status string) ([]domain.Ticket, error)
	ListAll(ctx context.Context, status string) ([]domain.Ticket, error)
	Create(ctx context.Context, customerID, title, description, priority, category string) (*domain.Ticket, error)
	Close(ctx context.Context, ticketID, customerID string) (*domain.Ticket, error)
}

// AgentService defines the orchestration pipeline operations: message intake,
// approval of held runs, manual write-step execution, and run inspection.
type AgentService interface {
	SendMessage(ctx context.Context, customerID, text string, requiresApproval bool) (*services.SendResult, error)
	Approve(ctx context.Context, customerID, draftText, action, emailSubject string) (*services.ApproveResult, error)
	ExecuteAction(ctx context.Context, runID string, action domain.Action, params map[string]any) (*services.ExecutedAction, error)
	LatestRun(ctx context.Context, customerID string) (*domain.AgentRun, []domain.PendingWrite, error)
}

// GmailService defines the optional Gmail draft integration. *gmail.Service
// satisfies it; tests substitute fakes.
type GmailService interface {
	Enabled() bool
	AuthURL() (url, state string, err error)
	Exchange(ctx context.Context, code, state string) (string, error)
	CurrentStatus(ctx context.Context) (gmail.Status, error)
	Disconnect(ctx context.Context) (int64, error)
	CreateDraft(ctx context.Context, to, subject, body string) (gmail.DraftResult, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for customers, messages, tickets, agent runs,
// the knowledge base, and Gmail. It depends on abstract service interfaces to
// keep transport concerns separate from business logic.
type Handlers struct {
	customerSvc CustomerService
	msgSvc      MessageService
	ticketSvc   TicketService
	agentSvc    AgentService
	gmailSvc    GmailService
	kbIndex     *kb.Index
}

// New constructs and returns a Handlers instance bound to the given services.
func New(customerSvc CustomerService, msgSvc MessageService, ticketSvc TicketService, agentSvc AgentService, gmailSvc GmailService, kbIndex *kb.Index) *Handlers {
	return &Handlers{
		customerSvc: customerSvc,
		msgSvc:      msgSvc,
		ticketSvc:   ticketSvc,
		agentSvc:    agentSvc,
		gmailSvc:    gmailSvc,
		kbIndex:     kbIndex,
	}
}

//
// DTOs
//

// ListCustomersResponse wraps the customer directory.
type ListCustomersResponse struct {
	Customers []domain.Customer `json:"customers"`
	Total     int               `json:"total"`
}

// SeedResponse reports the outcome of a seed request.
type SeedResponse struct {
	Seeded bool            `json:"seeded"`
	Counts repo.SeedCounts `json:"counts"`
}

//
// Handlers
//

// ListCustomers godoc
// @ID          listCustomers
// @Summary     List customers
// @Description Returns every customer in stable creation order.
// @Tags        Customers
// @Produce     json
//
// @Success     200  {object}  handlers.ListCustomersResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /customers [get]
func (h *Handlers) ListCustomers(c *gin.Context) {
	customers, err := h.customerSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListCustomersResponse{Customers: customers, Total: len(customers)})
}

// SeedDemo godoc
// @ID          seedDemo
// @Summary     Seed demo data
// @Description Inserts the demo dataset (customers, messages, tickets, events) once. Safe to call repeatedly.
// @Tags        Customers
// @Produce     json
//
// @Success     200  {object}  handlers.SeedResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /seed [post]
func (h *Handlers) SeedDemo(c *gin.Context) {
	counts, seeded, err := h.customerSvc.Seed(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, SeedResponse{Seeded: seeded, Counts: counts})
}
