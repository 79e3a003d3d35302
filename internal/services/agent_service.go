// Package services – AgentService
//
// This file implements the agent orchestrator. SendMessage drives the full
// pipeline for an inbound customer message: persist it, classify the intent,
// build the static plan, execute the read steps (each audited), generate the
// reply, then either send immediately (write steps included) or park the run
// behind the approval gate. Approve finalizes a pending run: it executes the
// write steps that have not run yet, persists the outbound message, stamps
// the run finalized and optionally creates a Gmail draft.
//
// Concurrency: sends and approvals for the same customer are serialized with
// a per-customer mutex, so the "latest run" the approval gate resolves is
// never racing a concurrent send.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// carry customer/run identifiers and the classified intent.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-support-agent/internal/agent"
	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/gmail"
	"github.com/tbourn/go-support-agent/internal/repo"
	"github.com/tbourn/go-support-agent/internal/reply"
)

// ExecutedAction reports one write-step execution to the API client.
type ExecutedAction struct {
	Step   int            `json:"step,omitempty"`
	Action domain.Action  `json:"action"`
	Result map[string]any `json:"result"`
}

// SendResult is the outcome of SendMessage. Status is "sent" or
// "pending_approval"; AgentMessage is set only when the reply went out.
type SendResult struct {
	Status          string                `json:"status"`
	CustomerMessage *domain.Message       `json:"customer_message"`
	AgentMessage    *domain.Message       `json:"agent_message,omitempty"`
	DraftReply      string                `json:"draft_reply,omitempty"`
	Run             *domain.AgentRun      `json:"agent_run"`
	PendingWrites   []domain.PendingWrite `json:"pending_writes"`
	ExecutedActions []ExecutedAction      `json:"executed_actions,omitempty"`
}

// ApproveResult is the outcome of Approve.
type ApproveResult struct {
	Status          string             `json:"status"`
	AgentMessage    *domain.Message    `json:"agent_message"`
	ExecutedActions []ExecutedAction   `json:"executed_actions"`
	Gmail           *gmail.DraftResult `json:"gmail,omitempty"`
}

// AgentService orchestrates agent runs over the deterministic core, the
// reply generator and the optional Gmail integration.
type AgentService struct {
	DB        *gorm.DB
	Executor  *agent.Executor
	Generator reply.Generator
	Gmail     *gmail.Service

	// MaxMessageRunes caps inbound message length; 0 disables the check.
	MaxMessageRunes int

	locks keyedMutex
}

// SendMessage runs the orchestration pipeline for one inbound message.
func (s *AgentService) SendMessage(ctx context.Context, customerID, text string, requiresApproval bool) (*SendResult, error) {
	tr := otel.Tracer("services/AgentService")
	ctx, span := tr.Start(ctx, "SendMessage",
		trace.WithAttributes(
			attribute.String("customer.id", customerID),
			attribute.Bool("requires_approval", requiresApproval),
		),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(text) > s.MaxMessageRunes {
		return nil, ErrTooLong
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	customer, err := repo.GetCustomer(ctx, s.DB, customerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	intent, confidence := agent.Classify(text)
	span.SetAttributes(attribute.String("agent.intent", string(intent)))
	plan := agent.BuildPlan(intent, text, customerID)
	planJSON, err := domain.EncodePlan(plan)
	if err != nil {
		return nil, err
	}

	// Phase 1: persist the inbound message, create the run and execute the
	// read steps in one transaction so their audit rows land atomically.
	var (
		inbound *domain.Message
		run     *domain.AgentRun
		rc      *agent.RunContext
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inbound, err = repo.CreateMessage(ctx, tx, customerID, domain.DirectionInbound, domain.ChannelChat, nil, text)
		if err != nil {
			return err
		}
		run, err = repo.CreateRun(ctx, tx, customerID, text, intent, confidence, planJSON)
		if err != nil {
			return err
		}
		rc, err = s.Executor.ExecuteReads(ctx, tx, run.ID, customerID, plan)
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("run.id", run.ID))

	// Reply generation happens outside any transaction: the generator may
	// call an external API. Generators degrade internally, never fail.
	draft, err := s.Generator.Generate(ctx, reply.Request{
		CustomerName:    customer.Name,
		CustomerCompany: customer.Company,
		Message:         text,
		Intent:          intent,
		Context:         rc,
	})
	if err != nil {
		draft, _ = reply.TemplateGenerator{}.Generate(ctx, reply.Request{
			CustomerName: customer.Name, Message: text, Intent: intent, Context: rc,
		})
	}

	// Phase 2: audit the generation step, store the draft and, unless an
	// approval is required, execute write steps and finalize.
	res := &SendResult{
		CustomerMessage: inbound,
		DraftReply:      draft,
		PendingWrites:   rc.PendingWrites,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		genInput := map[string]any{"customer_id": customerID, "latest_message": text}
		genOutput := map[string]any{"reply_text": draft}
		if _, err := repo.AppendAudit(ctx, tx, run.ID, domain.ActionGenerateResponse,
			mustJSON(genInput), mustJSON(genOutput), true); err != nil {
			return err
		}
		if err := repo.SetDraftReply(ctx, tx, run.ID, draft); err != nil {
			return err
		}

		if requiresApproval {
			res.Status = "pending_approval"
			return nil
		}

		executed, err := s.executeWrites(ctx, tx, run.ID, customerID, plan)
		if err != nil {
			return err
		}
		res.ExecutedActions = executed
		res.PendingWrites = nil

		outbound, err := repo.CreateMessage(ctx, tx, customerID, domain.DirectionOutbound, domain.ChannelChat, nil, draft)
		if err != nil {
			return err
		}
		res.AgentMessage = outbound
		res.Status = "sent"
		return repo.FinalizeRun(ctx, tx, run.ID, draft)
	})
	if err != nil {
		return nil, err
	}

	res.Run, err = repo.GetRun(ctx, s.DB, run.ID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Approve finalizes the customer's latest pending run with the (possibly
// edited) draft text. Write steps that already have an audit entry are
// skipped, so retried approvals cannot double-execute; a fully finalized run
// rejects the approval outright with ErrAlreadyApproved.
//
// When action is "gmail_draft", a Gmail draft is additionally created for
// the customer's address. Draft failures do not fail the approval; they are
// reported in the result's Gmail field.
func (s *AgentService) Approve(ctx context.Context, customerID, draftText, action, emailSubject string) (*ApproveResult, error) {
	tr := otel.Tracer("services/AgentService")
	ctx, span := tr.Start(ctx, "Approve",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	draftText = strings.TrimSpace(draftText)
	if draftText == "" {
		return nil, ErrEmptyDraft
	}

	unlock := s.locks.Lock(customerID)
	defer unlock()

	customer, err := repo.GetCustomer(ctx, s.DB, customerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	run, err := repo.LatestRunByCustomer(ctx, s.DB, customerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNoPendingRun
		}
		return nil, err
	}
	if run.Finalized() {
		return nil, ErrAlreadyApproved
	}
	span.SetAttributes(attribute.String("run.id", run.ID), attribute.String("agent.intent", string(run.Intent)))

	plan, err := domain.DecodePlan(run.PlanJSON)
	if err != nil {
		return nil, err
	}

	res := &ApproveResult{Status: "sent"}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		executed, err := s.executeWrites(ctx, tx, run.ID, customerID, plan)
		if err != nil {
			return err
		}
		res.ExecutedActions = executed

		outbound, err := repo.CreateMessage(ctx, tx, customerID, domain.DirectionOutbound, domain.ChannelChat, nil, draftText)
		if err != nil {
			return err
		}
		res.AgentMessage = outbound
		return repo.FinalizeRun(ctx, tx, run.ID, draftText)
	})
	if err != nil {
		return nil, err
	}

	// Gmail runs after the chat send committed; a draft failure must never
	// undo the approval.
	if action == "gmail_draft" {
		res.Gmail = s.createDraft(ctx, customer, run.Intent, emailSubject, draftText)
	}
	return res, nil
}

func (s *AgentService) createDraft(ctx context.Context, customer *domain.Customer, intent domain.Intent, subject, body string) *gmail.DraftResult {
	if s.Gmail == nil {
		return &gmail.DraftResult{Success: false, Error: gmail.ErrNotEnabled.Error()}
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = gmail.GenerateSubject(intent, customer.Name)
	}
	dr, err := s.Gmail.CreateDraft(ctx, customer.Email, subject, body)
	if err != nil {
		return &gmail.DraftResult{Success: false, Error: err.Error()}
	}
	return &dr
}

// executeWrites runs the plan's write steps in order, skipping any step that
// already has an audit entry for the run.
func (s *AgentService) executeWrites(ctx context.Context, tx *gorm.DB, runID, customerID string, plan []domain.PlanStep) ([]ExecutedAction, error) {
	executed := []ExecutedAction{}
	for _, step := range domain.WriteSteps(plan) {
		done, err := repo.HasAuditEntry(ctx, tx, runID, step.Action)
		if err != nil {
			return nil, err
		}
		if done {
			continue
		}
		out, _, err := s.Executor.Execute(ctx, tx, runID, customerID, step.Action, step.Params)
		if err != nil {
			return nil, err
		}
		executed = append(executed, ExecutedAction{Step: step.Step, Action: step.Action, Result: out})
	}
	return executed, nil
}

// ExecuteAction manually runs a single write action for a run, outside the
// approval flow. The same (run, action) pair executes at most once;
// duplicates are rejected with ErrActionAlreadyExecuted.
func (s *AgentService) ExecuteAction(ctx context.Context, runID string, action domain.Action, params map[string]any) (*ExecutedAction, error) {
	tr := otel.Tracer("services/AgentService")
	ctx, span := tr.Start(ctx, "ExecuteAction",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("agent.action", string(action)),
		),
	)
	defer span.End()

	if action != domain.ActionCreateTicket && action != domain.ActionEscalateToHuman {
		return nil, ErrUnknownAction
	}

	run, err := repo.GetRun(ctx, s.DB, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	unlock := s.locks.Lock(run.CustomerID)
	defer unlock()

	done, err := repo.HasAuditEntry(ctx, s.DB, runID, action)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, ErrActionAlreadyExecuted
	}

	var res *ExecutedAction
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out, _, err := s.Executor.Execute(ctx, tx, runID, run.CustomerID, action, params)
		if err != nil {
			return err
		}
		res = &ExecutedAction{Action: action, Result: out}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// LatestRun returns the customer's most recent run with its audit logs and
// decoded plan, plus the write steps still pending.
func (s *AgentService) LatestRun(ctx context.Context, customerID string) (*domain.AgentRun, []domain.PendingWrite, error) {
	tr := otel.Tracer("services/AgentService")
	ctx, span := tr.Start(ctx, "LatestRun",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	if _, err := repo.GetCustomer(ctx, s.DB, customerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrCustomerNotFound
		}
		return nil, nil, err
	}

	run, err := repo.LatestRunByCustomer(ctx, s.DB, customerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrRunNotFound
		}
		return nil, nil, err
	}

	pending, err := s.pendingWrites(ctx, run)
	if err != nil {
		return nil, nil, err
	}
	return run, pending, nil
}

// pendingWrites lists the run's write steps that have no audit entry yet.
// A finalized run has none by construction.
func (s *AgentService) pendingWrites(ctx context.Context, run *domain.AgentRun) ([]domain.PendingWrite, error) {
	if run.Finalized() {
		return nil, nil
	}
	plan, err := domain.DecodePlan(run.PlanJSON)
	if err != nil {
		return nil, err
	}
	var pending []domain.PendingWrite
	for _, step := range domain.WriteSteps(plan) {
		done, err := repo.HasAuditEntry(ctx, s.DB, run.ID, step.Action)
		if err != nil {
			return nil, err
		}
		if !done {
			pending = append(pending, step.PendingView())
		}
	}
	return pending, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
