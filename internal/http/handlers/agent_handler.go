// Agent-run HTTP handlers.
//
// This file exposes REST endpoints for the approval workflow and run
// inspection:
//   - POST /customers/{id}/approve            (approve a held reply)
//   - GET  /customers/{id}/latest-agent-run   (inspect the newest run)
//   - POST /agent-runs/{id}/execute-action    (run one pending write step)
//
// Approval accepts an optionally edited draft; the edited text becomes the
// final reply. A second approval of the same run is rejected, as is a repeat
// execute-action for the same (run, action) pair.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/services"
)

//
// DTOs
//

// ApproveRequest is the JSON payload for approving a pending agent run.
type ApproveRequest struct {
	// DraftText is the reply to send; edits to the stored draft are allowed.
	DraftText string `json:"draft_text" binding:"required,min=1"`
	// Action optionally requests a side channel; "gmail_draft" creates a
	// Gmail draft of the reply after the run is finalized.
	Action string `json:"action" example:"gmail_draft"`
	// EmailSubject overrides the generated subject when Action is gmail_draft.
	EmailSubject string `json:"email_subject" example:"Re: Pricing Inquiry - Alice Johnson"`
}

// ExecuteActionRequest is the JSON payload for running one write step.
type ExecuteActionRequest struct {
	// Action names the write step; only create_ticket and escalate_to_human
	// are accepted.
	Action string `json:"action" binding:"required" example:"create_ticket"`
	// Params overrides the planned tool input.
	Params map[string]any `json:"params"`
}

// ExecuteActionResponse wraps the audited result of a manual write step.
type ExecuteActionResponse struct {
	Executed *services.ExecutedAction `json:"executed"`
}

// LatestRunResponse is the newest run for a customer plus its still-pending
// write steps (empty once finalized).
type LatestRunResponse struct {
	Run           *domain.AgentRun      `json:"agent_run"`
	PendingWrites []domain.PendingWrite `json:"pending_writes"`
}

//
// Handlers
//

// Approve godoc
// @ID          approveRun
// @Summary     Approve a pending agent run
// @Description Sends the (possibly edited) draft reply, executes the pending write steps
// @Description exactly once, finalizes the run, and optionally creates a Gmail draft.
// @Tags        Agent
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Customer ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ApproveRequest  true  "Approval payload"
//
// @Success     200  {object}  services.ApproveResult
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Customer not found"
// @Failure     409  {object}  handlers.ErrorResponse  "No pending run / already approved"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /customers/{id}/approve [post]
func (h *Handlers) Approve(c *gin.Context) {
	customerID := c.Param("id")

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DraftText) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "draft_text required")
		return
	}

	res, err := h.agentSvc.Approve(c.Request.Context(), customerID, req.DraftText, req.Action, req.EmailSubject)
	if err != nil {
		switch err {
		case services.ErrCustomerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "customer not found")
		case services.ErrEmptyDraft:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "draft_text required")
		case services.ErrNoPendingRun:
			fail(c, http.StatusConflict, ErrCodeNoPendingRun, "no agent run pending approval")
		case services.ErrAlreadyApproved:
			fail(c, http.StatusConflict, ErrCodeAlreadyApproved, "agent run already approved")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, res)
}

// ExecuteAction godoc
// @ID          executeAction
// @Summary     Execute one pending write step
// @Description Runs a single write step (create_ticket or escalate_to_human) for a run.
// @Description A repeat call for the same (run, action) pair is rejected with 409.
// @Tags        Agent
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Agent run ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ExecuteActionRequest  true  "Action payload"
//
// @Success     200  {object}  handlers.ExecuteActionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown action"
// @Failure     404  {object}  handlers.ErrorResponse  "Run not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Action already executed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /agent-runs/{id}/execute-action [post]
func (h *Handlers) ExecuteAction(c *gin.Context) {
	runID := c.Param("id")

	var req ExecuteActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "action required")
		return
	}

	executed, err := h.agentSvc.ExecuteAction(c.Request.Context(), runID, domain.Action(req.Action), req.Params)
	if err != nil {
		switch err {
		case services.ErrRunNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "agent run not found")
		case services.ErrUnknownAction:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown or non-executable action")
		case services.ErrActionAlreadyExecuted:
			fail(c, http.StatusConflict, ErrCodeActionExecuted, "action already executed for this run")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ExecuteActionResponse{Executed: executed})
}

// LatestAgentRun godoc
// @ID          latestAgentRun
// @Summary     Inspect a customer's newest agent run
// @Description Returns the latest run with its audit trail and any write steps still pending approval.
// @Tags        Agent
// @Produce     json
//
// @Param       id  path  string  true  "Customer ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.LatestRunResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Customer or run not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /customers/{id}/latest-agent-run [get]
func (h *Handlers) LatestAgentRun(c *gin.Context) {
	run, pending, err := h.agentSvc.LatestRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch err {
		case services.ErrCustomerNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "customer not found")
		case services.ErrRunNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no agent runs for customer")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	if pending == nil {
		pending = []domain.PendingWrite{}
	}
	ok(c, http.StatusOK, LatestRunResponse{Run: run, PendingWrites: pending})
}
