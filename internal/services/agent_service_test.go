package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-support-agent/internal/agent"
	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/kb"
	"github.com/tbourn/go-support-agent/internal/repo"
	"github.com/tbourn/go-support-agent/internal/reply"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func pricingKB() *kb.Index {
	return kb.NewIndex([]kb.File{
		{Name: "pricing.md", Content: "# Pricing\n\n## Plans\n\nStarter is $29/month, Pro is $59/month and Enterprise is $99/month.\n\n## Discounts\n\nWe offer a student discount of 50% with a valid academic email address on any pricing plan."},
		{Name: "troubleshooting.md", Content: "# Troubleshooting\n\n## API Errors\n\nA 401 error means the API key is missing or invalid. Rotate the key from settings and retry."},
	})
}

func newAgentService(t *testing.T) (*AgentService, *gorm.DB, *domain.Customer) {
	t.Helper()
	db := newServiceDB(t)
	c, err := repo.CreateCustomer(context.Background(), db, "Alice Johnson", "alice@techcorp.com", "TechCorp Inc.")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	svc := &AgentService{
		DB:        db,
		Executor:  &agent.Executor{KB: pricingKB()},
		Generator: reply.TemplateGenerator{},
	}
	return svc, db, c
}

func countRows(t *testing.T, db *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestSendMessage_PricingImmediateSend(t *testing.T) {
	svc, db, c := newAgentService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, c.ID, "Do you offer a student discount? How much does the Pro plan cost?", false)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.Status != "sent" {
		t.Fatalf("status = %q", res.Status)
	}
	if res.Run.Intent != domain.IntentPricingInquiry || res.Run.Confidence != 0.7 {
		t.Errorf("intent = %s/%.2f", res.Run.Intent, res.Run.Confidence)
	}
	if !res.Run.Finalized() {
		t.Error("immediate send must finalize the run")
	}
	if res.AgentMessage == nil || res.AgentMessage.Direction != domain.DirectionOutbound {
		t.Fatalf("agent message: %+v", res.AgentMessage)
	}
	if !strings.Contains(res.AgentMessage.Body, "Sources used") || !strings.Contains(res.AgentMessage.Body, "pricing.md") {
		t.Errorf("reply does not cite pricing.md: %q", res.AgentMessage.Body)
	}

	// Plan had no write steps: profile, search_kb, generate_response.
	logs, err := repo.ListAudit(ctx, db, res.Run.ID)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("audit rows = %d, want 3", len(logs))
	}
	wantTools := []domain.Action{domain.ActionGetCustomerProfile, domain.ActionSearchKB, domain.ActionGenerateResponse}
	for i, w := range wantTools {
		if logs[i].ToolName != w {
			t.Errorf("audit[%d] = %s, want %s", i, logs[i].ToolName, w)
		}
	}

	if n := countRows(t, db, &domain.Ticket{}, ""); n != 0 {
		t.Errorf("pricing inquiry created %d tickets", n)
	}
	if n := countRows(t, db, &domain.Message{}, "customer_id = ?", c.ID); n != 2 {
		t.Errorf("messages = %d, want inbound+outbound", n)
	}
}

func TestSendMessage_ApprovalFlow(t *testing.T) {
	svc, db, c := newAgentService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, c.ID, "I'm having trouble integrating your API, getting 401 errors", true)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.Status != "pending_approval" {
		t.Fatalf("status = %q", res.Status)
	}
	if res.AgentMessage != nil {
		t.Error("pending approval must not persist an outbound message")
	}
	if res.DraftReply == "" || res.Run.DraftReply != res.DraftReply {
		t.Errorf("draft not stored: %q vs %q", res.DraftReply, res.Run.DraftReply)
	}
	if res.Run.Finalized() {
		t.Error("run finalized before approval")
	}
	if len(res.PendingWrites) != 1 || res.PendingWrites[0].Action != domain.ActionCreateTicket {
		t.Fatalf("pending writes: %+v", res.PendingWrites)
	}
	if n := countRows(t, db, &domain.Ticket{}, ""); n != 0 {
		t.Fatalf("write step executed before approval: %d tickets", n)
	}
	if n := countRows(t, db, &domain.Message{}, "direction = ?", domain.DirectionOutbound); n != 0 {
		t.Fatalf("outbound messages before approval: %d", n)
	}

	edited := "Hi Alice, I've opened a ticket for the 401 errors and our team will follow up shortly."
	ap, err := svc.Approve(ctx, c.ID, edited, "", "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if ap.Status != "sent" {
		t.Fatalf("approve status = %q", ap.Status)
	}
	if ap.AgentMessage == nil || ap.AgentMessage.Body != edited {
		t.Fatalf("outbound must carry the edited draft: %+v", ap.AgentMessage)
	}
	if len(ap.ExecutedActions) != 1 || ap.ExecutedActions[0].Action != domain.ActionCreateTicket {
		t.Fatalf("executed actions: %+v", ap.ExecutedActions)
	}
	if n := countRows(t, db, &domain.Ticket{}, ""); n != 1 {
		t.Fatalf("tickets after approve = %d, want 1", n)
	}

	run, err := repo.LatestRunByCustomer(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("LatestRunByCustomer: %v", err)
	}
	if !run.Finalized() || run.FinalReply != edited {
		t.Errorf("run not finalized with edited reply: %+v", run)
	}

	// Reads + generate_response + create_ticket.
	logs, _ := repo.ListAudit(ctx, db, run.ID)
	if len(logs) != 5 {
		t.Errorf("audit rows = %d, want 5", len(logs))
	}
}

func TestApprove_DoubleApprovalRejected(t *testing.T) {
	svc, db, c := newAgentService(t)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, c.ID, "found a bug, the dashboard is broken", true); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, err := svc.Approve(ctx, c.ID, "We're on it.", "", ""); err != nil {
		t.Fatalf("first Approve: %v", err)
	}

	if _, err := svc.Approve(ctx, c.ID, "We're on it again.", "", ""); err != ErrAlreadyApproved {
		t.Fatalf("second approve err = %v, want ErrAlreadyApproved", err)
	}

	// No extra side effects from the rejected approval.
	if n := countRows(t, db, &domain.Ticket{}, ""); n != 1 {
		t.Errorf("tickets = %d, want 1", n)
	}
	if n := countRows(t, db, &domain.Message{}, "direction = ?", domain.DirectionOutbound); n != 1 {
		t.Errorf("outbound messages = %d, want 1", n)
	}
}

func TestApprove_Validation(t *testing.T) {
	svc, _, c := newAgentService(t)
	ctx := context.Background()

	if _, err := svc.Approve(ctx, c.ID, "   ", "", ""); err != ErrEmptyDraft {
		t.Errorf("blank draft err = %v, want ErrEmptyDraft", err)
	}
	if _, err := svc.Approve(ctx, c.ID, "hello", "", ""); err != ErrNoPendingRun {
		t.Errorf("no-run approve err = %v, want ErrNoPendingRun", err)
	}
	if _, err := svc.Approve(ctx, "ghost", "hello", "", ""); err != ErrCustomerNotFound {
		t.Errorf("missing customer err = %v, want ErrCustomerNotFound", err)
	}
}

func TestApprove_GmailFailureIsNotFatal(t *testing.T) {
	svc, db, c := newAgentService(t)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, c.ID, "please escalate me to a manager", true); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// No Gmail service configured at all: the draft fails, the send stands.
	ap, err := svc.Approve(ctx, c.ID, "A human will reach out shortly.", "gmail_draft", "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if ap.Status != "sent" || ap.AgentMessage == nil {
		t.Fatalf("approve result: %+v", ap)
	}
	if ap.Gmail == nil || ap.Gmail.Success {
		t.Fatalf("gmail result should report failure: %+v", ap.Gmail)
	}
	if ap.Gmail.Error == "" {
		t.Error("gmail failure missing error text")
	}

	run, _ := repo.LatestRunByCustomer(ctx, db, c.ID)
	if !run.Finalized() {
		t.Error("run must finalize despite gmail failure")
	}
	// Escalation ticket still created.
	if n := countRows(t, db, &domain.Ticket{}, "category = ?", "escalation"); n != 1 {
		t.Errorf("escalation tickets = %d", n)
	}
}

func TestSendMessage_EscalationImmediate(t *testing.T) {
	svc, db, c := newAgentService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, c.ID, "I want to escalate this to a supervisor", false)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if res.Run.Intent != domain.IntentEscalationRequest {
		t.Fatalf("intent = %s", res.Run.Intent)
	}
	if len(res.ExecutedActions) != 1 || res.ExecutedActions[0].Action != domain.ActionEscalateToHuman {
		t.Fatalf("executed: %+v", res.ExecutedActions)
	}

	var tk domain.Ticket
	if err := db.Where("category = ?", "escalation").First(&tk).Error; err != nil {
		t.Fatalf("escalation ticket missing: %v", err)
	}
	if tk.Priority != domain.PriorityUrgent || !strings.HasPrefix(tk.Title, "ESCALATION: ") {
		t.Errorf("escalation ticket: %+v", tk)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	svc, _, c := newAgentService(t)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, c.ID, "   \n ", false); err != ErrEmptyMessage {
		t.Errorf("empty text err = %v, want ErrEmptyMessage", err)
	}
	if _, err := svc.SendMessage(ctx, "ghost", "hello", false); err != ErrCustomerNotFound {
		t.Errorf("missing customer err = %v, want ErrCustomerNotFound", err)
	}

	svc.MaxMessageRunes = 5
	if _, err := svc.SendMessage(ctx, c.ID, "this is longer than five runes", false); err != ErrTooLong {
		t.Errorf("long text err = %v, want ErrTooLong", err)
	}
}

func TestExecuteAction_DuplicateGuard(t *testing.T) {
	svc, db, c := newAgentService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, c.ID, "found a bug in the exporter", true)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	runID := res.Run.ID

	params := map[string]any{
		"title": "Bug Report: exporter", "description": "exporter bug",
		"priority": "high", "category": "bug",
	}
	ex, err := svc.ExecuteAction(ctx, runID, domain.ActionCreateTicket, params)
	if err != nil {
		t.Fatalf("ExecuteAction: %v", err)
	}
	if id, _ := ex.Result["ticket_id"].(string); id == "" {
		t.Fatalf("no ticket created: %+v", ex.Result)
	}

	if _, err := svc.ExecuteAction(ctx, runID, domain.ActionCreateTicket, params); err != ErrActionAlreadyExecuted {
		t.Fatalf("duplicate err = %v, want ErrActionAlreadyExecuted", err)
	}
	if n := countRows(t, db, &domain.Ticket{}, ""); n != 1 {
		t.Fatalf("tickets = %d, want 1", n)
	}
	if n := countRows(t, db, &domain.AuditLog{}, "run_id = ? AND tool_name = ?", runID, domain.ActionCreateTicket); n != 1 {
		t.Fatalf("create_ticket audit rows = %d, want 1", n)
	}

	if _, err := svc.ExecuteAction(ctx, runID, domain.ActionSearchKB, nil); err != ErrUnknownAction {
		t.Errorf("read action via execute err = %v, want ErrUnknownAction", err)
	}
	if _, err := svc.ExecuteAction(ctx, "missing-run", domain.ActionCreateTicket, params); err != ErrRunNotFound {
		t.Errorf("missing run err = %v, want ErrRunNotFound", err)
	}
}

func TestApprove_SkipsAlreadyExecutedWrites(t *testing.T) {
	svc, db, c := newAgentService(t)
	ctx := context.Background()

	res, err := svc.SendMessage(ctx, c.ID, "found a bug in the exporter", true)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// Manually execute the pending write, then approve: the approval must
	// not re-run it.
	pw := res.PendingWrites[0]
	if _, err := svc.ExecuteAction(ctx, res.Run.ID, pw.Action, pw.Params); err != nil {
		t.Fatalf("ExecuteAction: %v", err)
	}

	ap, err := svc.Approve(ctx, c.ID, "Ticket filed, we're on it.", "", "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(ap.ExecutedActions) != 0 {
		t.Errorf("approve re-executed writes: %+v", ap.ExecutedActions)
	}
	if n := countRows(t, db, &domain.Ticket{}, ""); n != 1 {
		t.Errorf("tickets = %d, want 1", n)
	}
}

func TestLatestRun(t *testing.T) {
	svc, _, c := newAgentService(t)
	ctx := context.Background()

	if _, _, err := svc.LatestRun(ctx, c.ID); err != ErrRunNotFound {
		t.Fatalf("no runs err = %v, want ErrRunNotFound", err)
	}
	if _, _, err := svc.LatestRun(ctx, "ghost"); err != ErrCustomerNotFound {
		t.Fatalf("missing customer err = %v, want ErrCustomerNotFound", err)
	}

	if _, err := svc.SendMessage(ctx, c.ID, "billing issue with my invoice", true); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	run, pending, err := svc.LatestRun(ctx, c.ID)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.Intent != domain.IntentBillingIssue {
		t.Errorf("intent = %s", run.Intent)
	}
	if len(run.AuditLogs) == 0 {
		t.Error("audit logs not preloaded")
	}
	if len(pending) != 1 || pending[0].Action != domain.ActionCreateTicket {
		t.Errorf("pending = %+v", pending)
	}

	if _, err := svc.Approve(ctx, c.ID, "sorted", "", ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	_, pending, err = svc.LatestRun(ctx, c.ID)
	if err != nil {
		t.Fatalf("LatestRun after approve: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after finalize = %+v", pending)
	}
}

func TestSendMessage_SerializesPerCustomer(t *testing.T) {
	svc, db, c := newAgentService(t)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := svc.SendMessage(ctx, c.ID, fmt.Sprintf("pricing question %d", i), false)
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent send: %v", err)
		}
	}

	if got := countRows(t, db, &domain.AgentRun{}, "customer_id = ?", c.ID); got != n {
		t.Errorf("runs = %d, want %d", got, n)
	}
	if got := countRows(t, db, &domain.Message{}, "customer_id = ?", c.ID); got != 2*n {
		t.Errorf("messages = %d, want %d", got, 2*n)
	}
}
