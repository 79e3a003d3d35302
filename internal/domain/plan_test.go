package domain

import "testing"

func TestEncodeDecodePlanRoundTrip(t *testing.T) {
	in := []PlanStep{
		{Step: 1, Action: ActionGetCustomerProfile, Type: StepRead, Description: "Retrieve customer information"},
		{Step: 2, Action: ActionCreateTicket, Type: StepWrite, Description: "Create bug ticket", Params: map[string]any{"category": "bug", "priority": "high"}},
	}

	raw, err := EncodePlan(in)
	if err != nil {
		t.Fatalf("EncodePlan: %v", err)
	}
	out, err := DecodePlan(raw)
	if err != nil {
		t.Fatalf("DecodePlan: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Action != ActionGetCustomerProfile || out[0].Type != StepRead {
		t.Errorf("step 1 mismatch: %+v", out[0])
	}
	if out[1].Action != ActionCreateTicket || out[1].Type != StepWrite {
		t.Errorf("step 2 mismatch: %+v", out[1])
	}
	if got := out[1].Params["category"]; got != "bug" {
		t.Errorf("params[category] = %v, want bug", got)
	}
}

func TestDecodePlanEmpty(t *testing.T) {
	steps, err := DecodePlan("")
	if err != nil {
		t.Fatalf("DecodePlan(\"\"): %v", err)
	}
	if steps != nil {
		t.Errorf("expected nil plan, got %+v", steps)
	}
}

func TestWriteSteps(t *testing.T) {
	steps := []PlanStep{
		{Step: 1, Action: ActionGetCustomerProfile, Type: StepRead},
		{Step: 2, Action: ActionCreateTicket, Type: StepWrite},
		{Step: 3, Action: ActionGenerateResponse, Type: StepRead},
		{Step: 4, Action: ActionEscalateToHuman, Type: StepWrite},
	}
	w := WriteSteps(steps)
	if len(w) != 2 {
		t.Fatalf("len = %d, want 2", len(w))
	}
	if w[0].Action != ActionCreateTicket || w[1].Action != ActionEscalateToHuman {
		t.Errorf("order not preserved: %+v", w)
	}
}

func TestPendingView(t *testing.T) {
	s := PlanStep{Step: 3, Action: ActionCreateTicket, Type: StepWrite, Description: "Create ticket", Params: map[string]any{"priority": "medium"}}
	p := s.PendingView()
	if p.Status != "pending" {
		t.Errorf("status = %q, want pending", p.Status)
	}
	if p.Step != 3 || p.Action != ActionCreateTicket || p.Description != "Create ticket" {
		t.Errorf("fields not carried over: %+v", p)
	}
}

func TestVocabularyValidity(t *testing.T) {
	for _, in := range Intents() {
		if !in.Valid() {
			t.Errorf("intent %q should be valid", in)
		}
	}
	if Intent("spam").Valid() {
		t.Error("unknown intent accepted")
	}
	if Action("drop_table").Valid() {
		t.Error("unknown action accepted")
	}
	if !ActionSearchKB.Valid() || !ActionEscalateToHuman.Valid() {
		t.Error("known action rejected")
	}
	if !TicketClosed.Valid() || TicketStatus("archived").Valid() {
		t.Error("ticket status validity wrong")
	}
	if !PriorityUrgent.Valid() || TicketPriority("asap").Valid() {
		t.Error("ticket priority validity wrong")
	}
}

func TestRunFinalized(t *testing.T) {
	var r AgentRun
	if r.Finalized() {
		t.Error("fresh run must not be finalized")
	}
	now := r.CreatedAt
	r.FinalizedAt = &now
	if !r.Finalized() {
		t.Error("run with FinalizedAt set must report finalized")
	}
}
