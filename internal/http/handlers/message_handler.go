// Message HTTP handlers.
//
// This file exposes REST endpoints for the support conversation:
//   - GET  /customers/{id}/messages   (conversation history, ETag support)
//   - POST /customers/{id}/messages   (inbound message → agent pipeline)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (AgentService, MessageService)
//   - implement conditional responses (ETag) and idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (customer, scope, key), the handler returns the recorded
// agent run and sets `Idempotency-Replayed: true`.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/http/middleware"
	"github.com/tbourn/go-support-agent/internal/repo"
	"github.com/tbourn/go-support-agent/internal/services"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for an inbound customer message.
//
// Text is normalized by the handler (line endings and excessive blank lines)
// before being passed to the service layer. The service also enforces a
// maximum rune count, configurable on AgentService.
type SendMessageRequest struct {
	// Text is the customer message. It must be non-empty.
	Text string `json:"text" binding:"required,min=1" example:"Do you offer student discounts on the Pro plan?"`
	// RequiresApproval holds the reply for human review instead of sending.
	RequiresApproval bool `json:"requires_approval" example:"false"`
}

// ListMessagesResponse contains a customer's conversation history.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}

// ReplayedRunResponse is returned when an Idempotency-Key replay is served.
type ReplayedRunResponse struct {
	Status string           `json:"status"`
	Run    *domain.AgentRun `json:"agent_run"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeText normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeText(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxMessageRunes inspects the concrete AgentService for a configured
// message-length limit. If unavailable, it returns a conservative fallback.
func discoverMaxMessageRunes(agentSvc AgentService) int {
	const fallback = 4000
	if as, ok := agentSvc.(*services.AgentService); ok {
		if as.MaxMessageRunes > 0 {
			return as.MaxMessageRunes
		}
	}
	return fallback
}

// agentDB unwraps the *gorm.DB behind the concrete AgentService, when
// available. Used for best-effort idempotency bookkeeping at the edge.
func (h *Handlers) agentDB() *gorm.DB {
	if as, ok := h.agentSvc.(*services.AgentService); ok {
		return as.DB
	}
	return nil
}

//
// Handlers
//

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a customer message through the agent pipeline
// @Description Classifies the message, executes the read steps, generates a reply, and
// @Description either sends it immediately or holds it for approval.
// @Description Supports idempotency via the Idempotency-Key header (same key → same run).
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Customer ID (UUID)"  format(uuid)
// @Param       body             body    handlers.SendMessageRequest  true  "Inbound message payload"
//
// @Success     200  {object}  services.SendResult           "Pipeline outcome"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse        "Customer not found"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /customers/{id}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := c.Param("id")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	text := sanitizeText(req.Text)
	maxRunes := discoverMaxMessageRunes(h.agentSvc)
	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("text too long: max %d runes", maxRunes))
		return
	}
	if text == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		return
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	scope := middleware.IdempotencyScope(c)
	if idemKey != "" {
		if db := h.agentDB(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, customerID, scope, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if run, err2 := repo.GetRun(ctx, db, rec.RunID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, ReplayedRunResponse{Status: "replayed", Run: run})
					return
				}
			}
		}
	}

	res, err := h.agentSvc.SendMessage(ctx, customerID, text, req.RequiresApproval)
	if err != nil {
		switch err {
		case services.ErrCustomerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "customer not found")
		case services.ErrTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("text too long: max %d runes", maxRunes))
		case services.ErrEmptyMessage:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && res.Run != nil {
		if db := h.agentDB(); db != nil {
			ttl := 24 * time.Hour
			_, _ = repo.CreateIdempotency(ctx, db, customerID, scope, idemKey, res.Run.ID, http.StatusOK, ttl)
		}
	}

	ok(c, http.StatusOK, res)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List a customer's conversation
// @Description Returns the customer's messages oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
//
// @Param       id             path    string  true  "Customer ID (UUID)"  format(uuid)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse "Customer not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /customers/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := c.Param("id")

	// ETag pre-check (best effort).
	if db := h.agentDB(); db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, db, customerID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d"`, customerID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	msgs, err := h.msgSvc.List(ctx, customerID)
	if err != nil {
		switch err {
		case services.ErrCustomerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "customer not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: msgs, Total: len(msgs)})
}
