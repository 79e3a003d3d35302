package agent

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

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/kb"
	"github.com/tbourn/go-support-agent/internal/repo"
)

func newExecDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("exec_test_%d.db", time.Now().UnixNano()))
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

func execFixture(t *testing.T, db *gorm.DB) (customerID, runID string) {
	t.Helper()
	ctx := context.Background()
	c, err := repo.CreateCustomer(ctx, db, "Alice Johnson", "alice@techcorp.com", "TechCorp Inc.")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	r, err := repo.CreateRun(ctx, db, c.ID, "hi", domain.IntentGeneralQuestion, 0.5, "[]")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return c.ID, r.ID
}

func testKB() *kb.Index {
	return kb.NewIndex([]kb.File{{
		Name: "pricing.md",
		Content: "# Pricing\n\n## Plans\n\nStarter is $29/month and Enterprise is $99/month with a free trial included for every plan.",
	}})
}

func TestExecute_ProfileAndAudit(t *testing.T) {
	db := newExecDB(t)
	custID, runID := execFixture(t, db)
	ex := &Executor{KB: testKB()}
	ctx := context.Background()

	if _, err := repo.CreateEvent(ctx, db, custID, "login", "User logged in", ""); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	out, ok, err := ex.Execute(ctx, db, runID, custID, domain.ActionGetCustomerProfile, nil)
	if err != nil || !ok {
		t.Fatalf("Execute: ok=%v err=%v", ok, err)
	}
	if out["name"] != "Alice Johnson" || out["email"] != "alice@techcorp.com" {
		t.Errorf("profile output: %+v", out)
	}
	events, _ := out["recent_events"].([]map[string]any)
	if len(events) != 1 || events[0]["event_type"] != "login" {
		t.Errorf("recent_events: %+v", out["recent_events"])
	}

	logs, err := repo.ListAudit(ctx, db, runID)
	if err != nil || len(logs) != 1 {
		t.Fatalf("audit rows = %d, %v", len(logs), err)
	}
	if logs[0].ToolName != domain.ActionGetCustomerProfile || !logs[0].Success {
		t.Errorf("audit row: %+v", logs[0])
	}
}

func TestExecute_MissingCustomerFailsButAudits(t *testing.T) {
	db := newExecDB(t)
	_, runID := execFixture(t, db)
	ex := &Executor{}
	ctx := context.Background()

	out, ok, err := ex.Execute(ctx, db, runID, "ghost", domain.ActionGetCustomerProfile, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ok {
		t.Fatal("expected tool failure for missing customer")
	}
	if _, has := out["error"]; !has {
		t.Errorf("output missing error: %+v", out)
	}

	logs, _ := repo.ListAudit(ctx, db, runID)
	if len(logs) != 1 || logs[0].Success {
		t.Fatalf("failed execution must audit success=false: %+v", logs)
	}
}

func TestExecute_UnknownActionAudited(t *testing.T) {
	db := newExecDB(t)
	custID, runID := execFixture(t, db)
	ex := &Executor{}
	ctx := context.Background()

	out, ok, err := ex.Execute(ctx, db, runID, custID, domain.Action("delete_everything"), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if ok {
		t.Fatal("unknown action must not succeed")
	}
	msg, _ := out["error"].(string)
	if !strings.Contains(msg, "unknown action") {
		t.Errorf("error = %q", msg)
	}
	logs, _ := repo.ListAudit(ctx, db, runID)
	if len(logs) != 1 || logs[0].Success {
		t.Fatalf("unknown action must leave a failed audit row: %+v", logs)
	}
}

func TestExecute_CreateTicket(t *testing.T) {
	db := newExecDB(t)
	custID, runID := execFixture(t, db)
	ex := &Executor{}
	ctx := context.Background()

	out, ok, err := ex.Execute(ctx, db, runID, custID, domain.ActionCreateTicket, map[string]any{
		"title":       "Bug Report: charts broken",
		"description": "charts are not loading",
		"priority":    "high",
		"category":    "bug",
	})
	if err != nil || !ok {
		t.Fatalf("Execute: ok=%v err=%v", ok, err)
	}
	ticketID, _ := out["ticket_id"].(string)
	if ticketID == "" {
		t.Fatalf("no ticket_id in output: %+v", out)
	}

	tk, err := repo.GetTicket(ctx, db, ticketID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if tk.Priority != domain.PriorityHigh || tk.Category != "bug" || tk.Status != domain.TicketOpen {
		t.Errorf("ticket fields: %+v", tk)
	}
}

func TestExecute_EscalateCreatesUrgentTicket(t *testing.T) {
	db := newExecDB(t)
	custID, runID := execFixture(t, db)
	ex := &Executor{}
	ctx := context.Background()

	out, ok, err := ex.Execute(ctx, db, runID, custID, domain.ActionEscalateToHuman, map[string]any{
		"reason": "I want a manager",
	})
	if err != nil || !ok {
		t.Fatalf("Execute: ok=%v err=%v", ok, err)
	}
	ticketID, _ := out["ticket_id"].(string)
	tk, err := repo.GetTicket(ctx, db, ticketID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if tk.Priority != domain.PriorityUrgent || tk.Category != "escalation" {
		t.Errorf("escalation ticket: %+v", tk)
	}
	if !strings.HasPrefix(tk.Title, "ESCALATION: ") {
		t.Errorf("title = %q", tk.Title)
	}
}

func TestExecuteReads_CollectsContextAndPendingWrites(t *testing.T) {
	db := newExecDB(t)
	custID, runID := execFixture(t, db)
	ex := &Executor{KB: testKB()}
	ctx := context.Background()

	plan := BuildPlan(domain.IntentBugReport, "found a bug, charts broken", custID)
	rc, err := ex.ExecuteReads(ctx, db, runID, custID, plan)
	if err != nil {
		t.Fatalf("ExecuteReads: %v", err)
	}
	if rc.CustomerProfile == nil || rc.OpenTickets == nil || rc.KBResults == nil {
		t.Fatalf("context incomplete: %+v", rc)
	}
	if len(rc.PendingWrites) != 1 || rc.PendingWrites[0].Action != domain.ActionCreateTicket {
		t.Fatalf("pending writes: %+v", rc.PendingWrites)
	}
	if rc.PendingWrites[0].Status != "pending" {
		t.Errorf("status = %q", rc.PendingWrites[0].Status)
	}

	// Only the three read tools are audited; the write stayed pending and
	// generate_response is audited by the orchestrator later.
	logs, _ := repo.ListAudit(ctx, db, runID)
	if len(logs) != 3 {
		t.Fatalf("audit rows = %d, want 3", len(logs))
	}
	for _, l := range logs {
		if l.ToolName == domain.ActionCreateTicket {
			t.Errorf("write step executed during read phase")
		}
	}
}
