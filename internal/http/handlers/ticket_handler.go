// Ticket HTTP handlers.
//
// This file exposes REST endpoints for tickets outside the agent write path:
//   - GET  /customers/{id}/tickets                       (per-customer, ETag support)
//   - POST /customers/{id}/tickets                       (manual creation)
//   - POST /customers/{id}/tickets/{ticket_id}/close
//   - GET  /tickets                                      (cross-customer, owner embedded)
//   - POST /tickets/{id}/close
//
// The status query parameter accepts open|closed|all; "open" includes tickets
// in progress, anything unrecognized falls back to "all".
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/repo"
	"github.com/tbourn/go-support-agent/internal/services"
)

//
// DTOs
//

// CreateTicketRequest is the JSON payload for opening a ticket by hand.
type CreateTicketRequest struct {
	// Title summarizes the issue; a default is used when empty.
	Title string `json:"title" example:"CSV export times out"`
	// Description carries the details.
	Description string `json:"description"`
	// Priority is one of low|medium|high|urgent; defaults to medium.
	Priority string `json:"priority" example:"high"`
	// Category labels the ticket (bug, billing, ...).
	Category string `json:"category" example:"bug"`
}

// ListTicketsResponse wraps a ticket listing.
type ListTicketsResponse struct {
	Tickets []domain.Ticket `json:"tickets"`
	Total   int             `json:"total"`
}

//
// Handlers
//

// ListCustomerTickets godoc
// @ID          listCustomerTickets
// @Summary     List a customer's tickets
// @Description Returns the customer's tickets newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Tickets
// @Produce     json
//
// @Param       id      path   string  true   "Customer ID (UUID)"  format(uuid)
// @Param       status  query  string  false  "open | closed | all" default(all)
//
// @Success     200  {object}  handlers.ListTicketsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse "Customer not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /customers/{id}/tickets [get]
func (h *Handlers) ListCustomerTickets(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := c.Param("id")
	status := c.DefaultQuery("status", "all")

	// ETag pre-check (best effort). Valid only for the unfiltered view since
	// the stats ignore the status filter.
	if db := h.agentDB(); db != nil && (status == "" || status == "all") {
		count, maxTS, err := repo.TicketsStats(ctx, db, customerID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"tickets:%s:%d:%d"`, customerID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	tickets, err := h.ticketSvc.ListForCustomer(ctx, customerID, status)
	if err != nil {
		switch err {
		case services.ErrCustomerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "customer not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ListTicketsResponse{Tickets: tickets, Total: len(tickets)})
}

// CreateTicket godoc
// @ID          createTicket
// @Summary     Open a ticket for a customer
// @Tags        Tickets
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Customer ID (UUID)"  format(uuid)
// @Param       body  body  handlers.CreateTicketRequest  true  "Ticket payload"
//
// @Success     201  {object}  domain.Ticket
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Customer not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /customers/{id}/tickets [post]
func (h *Handlers) CreateTicket(c *gin.Context) {
	customerID := c.Param("id")

	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	t, err := h.ticketSvc.Create(c.Request.Context(), customerID, req.Title, req.Description, req.Priority, req.Category)
	if err != nil {
		switch err {
		case services.ErrCustomerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "customer not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, t)
}

// CloseCustomerTicket godoc
// @ID          closeCustomerTicket
// @Summary     Close a customer's ticket
// @Description Closing is monotonic; a closed ticket stays closed and keeps its closed_at.
// @Tags        Tickets
// @Produce     json
//
// @Param       id         path  string  true  "Customer ID (UUID)"  format(uuid)
// @Param       ticket_id  path  string  true  "Ticket ID (UUID)"    format(uuid)
//
// @Success     200  {object}  domain.Ticket
// @Failure     404  {object}  handlers.ErrorResponse "Ticket not found for customer"
// @Failure     409  {object}  handlers.ErrorResponse "Ticket already closed"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /customers/{id}/tickets/{ticket_id}/close [post]
func (h *Handlers) CloseCustomerTicket(c *gin.Context) {
	h.closeTicket(c, c.Param("ticket_id"), c.Param("id"))
}

// ListTickets godoc
// @ID          listTickets
// @Summary     List tickets across all customers
// @Description Returns tickets newest first with the owning customer embedded.
// @Tags        Tickets
// @Produce     json
//
// @Param       status  query  string  false  "open | closed | all" default(all)
//
// @Success     200  {object}  handlers.ListTicketsResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /tickets [get]
func (h *Handlers) ListTickets(c *gin.Context) {
	tickets, err := h.ticketSvc.ListAll(c.Request.Context(), c.DefaultQuery("status", "all"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListTicketsResponse{Tickets: tickets, Total: len(tickets)})
}

// CloseTicket godoc
// @ID          closeTicket
// @Summary     Close a ticket
// @Tags        Tickets
// @Produce     json
//
// @Param       id  path  string  true  "Ticket ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Ticket
// @Failure     404  {object}  handlers.ErrorResponse "Ticket not found"
// @Failure     409  {object}  handlers.ErrorResponse "Ticket already closed"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /tickets/{id}/close [post]
func (h *Handlers) CloseTicket(c *gin.Context) {
	h.closeTicket(c, c.Param("id"), "")
}

func (h *Handlers) closeTicket(c *gin.Context, ticketID, customerID string) {
	t, err := h.ticketSvc.Close(c.Request.Context(), ticketID, customerID)
	if err != nil {
		switch err {
		case services.ErrTicketNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found")
		case services.ErrTicketClosed:
			fail(c, http.StatusConflict, ErrCodeTicketClosed, "ticket already closed")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, t)
}
