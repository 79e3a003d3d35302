package agent

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/kb"
	"github.com/tbourn/go-support-agent/internal/repo"
)

// RunContext accumulates the tool outputs gathered while executing a plan's
// read steps. The reply generator consumes it, and write steps that were
// skipped pending approval are collected alongside.
type RunContext struct {
	CustomerProfile map[string]any
	OpenTickets     map[string]any
	KBResults       map[string]any
	PendingWrites   []domain.PendingWrite
}

// Executor dispatches plan actions against the database and the knowledge
// base. Every execution appends exactly one audit row for the run, including
// failed and unknown actions; the audit insert shares the caller's db handle
// so it commits (or rolls back) with the action's own writes.
type Executor struct {
	KB *kb.Index
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func str(params map[string]any, key, fallback string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// ExecuteReads walks the plan in order, executing read steps and collecting
// write steps as pending. The generate_response step is not executed here;
// the orchestrator audits it once the reply exists.
func (e *Executor) ExecuteReads(ctx context.Context, db *gorm.DB, runID, customerID string, plan []domain.PlanStep) (*RunContext, error) {
	rc := &RunContext{}
	for _, step := range plan {
		if step.Type == domain.StepWrite {
			rc.PendingWrites = append(rc.PendingWrites, step.PendingView())
			continue
		}
		if step.Action == domain.ActionGenerateResponse {
			continue
		}
		out, _, err := e.Execute(ctx, db, runID, customerID, step.Action, step.Params)
		if err != nil {
			return nil, err
		}
		switch step.Action {
		case domain.ActionGetCustomerProfile:
			rc.CustomerProfile = out
		case domain.ActionGetOpenTickets:
			rc.OpenTickets = out
		case domain.ActionSearchKB:
			rc.KBResults = out
		}
	}
	return rc, nil
}

// Execute runs a single action and appends its audit row. The returned bool
// reports tool-level success; tool failures are captured in the output map
// under "error" rather than returned as errors. The error return is reserved
// for persistence failures that must abort the run.
func (e *Executor) Execute(ctx context.Context, db *gorm.DB, runID, customerID string, action domain.Action, params map[string]any) (map[string]any, bool, error) {
	var (
		out     map[string]any
		success bool
	)
	switch action {
	case domain.ActionGetCustomerProfile:
		out, success = e.getCustomerProfile(ctx, db, customerID)
	case domain.ActionGetOpenTickets:
		out, success = e.getOpenTickets(ctx, db, customerID)
	case domain.ActionSearchKB:
		out, success = e.searchKB(str(params, "query", ""))
	case domain.ActionCreateTicket:
		out, success = e.createTicket(ctx, db, customerID, params)
	case domain.ActionEscalateToHuman:
		out, success = e.escalateToHuman(ctx, db, customerID, params)
	default:
		out, success = map[string]any{"error": "unknown action: " + string(action)}, false
	}

	input := map[string]any{"customer_id": customerID}
	for k, v := range params {
		input[k] = v
	}
	if _, err := repo.AppendAudit(ctx, db, runID, action, toJSON(input), toJSON(out), success); err != nil {
		return nil, false, err
	}
	return out, success, nil
}

func (e *Executor) getCustomerProfile(ctx context.Context, db *gorm.DB, customerID string) (map[string]any, bool) {
	c, err := repo.GetCustomer(ctx, db, customerID)
	if err != nil {
		if err == repo.ErrNotFound {
			return map[string]any{"error": "customer not found"}, false
		}
		return map[string]any{"error": err.Error()}, false
	}

	events, err := repo.RecentEvents(ctx, db, customerID, 5)
	if err != nil {
		return map[string]any{"error": err.Error()}, false
	}
	recent := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		recent = append(recent, map[string]any{
			"event_type":  ev.EventType,
			"description": ev.Description,
			"created_at":  ev.CreatedAt.Format(time.RFC3339),
		})
	}

	return map[string]any{
		"id":            c.ID,
		"name":          c.Name,
		"email":         c.Email,
		"company":       c.Company,
		"created_at":    c.CreatedAt.Format(time.RFC3339),
		"recent_events": recent,
	}, true
}

func (e *Executor) getOpenTickets(ctx context.Context, db *gorm.DB, customerID string) (map[string]any, bool) {
	tickets, err := repo.ListTickets(ctx, db, customerID, "open")
	if err != nil {
		return map[string]any{"error": err.Error()}, false
	}
	list := make([]map[string]any, 0, len(tickets))
	for _, t := range tickets {
		list = append(list, map[string]any{
			"id":          t.ID,
			"title":       t.Title,
			"description": t.Description,
			"status":      t.Status,
			"priority":    t.Priority,
			"created_at":  t.CreatedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{"tickets": list, "count": len(list)}, true
}

func (e *Executor) searchKB(query string) (map[string]any, bool) {
	var results []kb.Result
	if e.KB != nil {
		results = e.KB.Search(query, kb.DefaultTopK)
	}
	if results == nil {
		results = []kb.Result{}
	}
	return map[string]any{"results": results, "count": len(results), "query": query}, true
}

func (e *Executor) createTicket(ctx context.Context, db *gorm.DB, customerID string, params map[string]any) (map[string]any, bool) {
	title := str(params, "title", "Support Ticket")
	description := str(params, "description", "")
	priority := domain.TicketPriority(str(params, "priority", string(domain.PriorityMedium)))
	category := str(params, "category", "general")

	t, err := repo.CreateTicket(ctx, db, customerID, title, description, priority, category)
	if err != nil {
		return map[string]any{"error": err.Error()}, false
	}
	return map[string]any{
		"ticket_id":   t.ID,
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"priority":    t.Priority,
		"category":    t.Category,
		"created_at":  t.CreatedAt.Format(time.RFC3339),
		"message":     "Ticket " + t.ID + " created successfully",
	}, true
}

func (e *Executor) escalateToHuman(ctx context.Context, db *gorm.DB, customerID string, params map[string]any) (map[string]any, bool) {
	reason := str(params, "reason", "Customer requested escalation")
	return e.createTicket(ctx, db, customerID, map[string]any{
		"title":       "ESCALATION: " + reason,
		"description": reason,
		"priority":    string(domain.PriorityUrgent),
		"category":    "escalation",
	})
}
