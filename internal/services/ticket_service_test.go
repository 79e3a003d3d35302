package services

import (
	"context"
	"testing"

	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/repo"
)

func TestTicketService_CreateAndFilter(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	c, err := repo.CreateCustomer(ctx, db, "Bob Smith", "bob@startup.io", "Startup.io")
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	svc := &TicketService{DB: db}

	tk, err := svc.Create(ctx, c.ID, "Broken exports", "CSV export times out", "high", "bug")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tk.Status != domain.TicketOpen || tk.Priority != domain.PriorityHigh {
		t.Errorf("ticket: %+v", tk)
	}

	// Unknown priority falls back to medium, blank title gets a default.
	tk2, err := svc.Create(ctx, c.ID, "  ", "", "asap", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tk2.Priority != domain.PriorityMedium || tk2.Title != "Support Ticket" {
		t.Errorf("defaults: %+v", tk2)
	}

	if _, err := svc.Create(ctx, "ghost", "x", "", "", ""); err != ErrCustomerNotFound {
		t.Errorf("missing customer err = %v", err)
	}

	open, err := svc.ListForCustomer(ctx, c.ID, "open")
	if err != nil || len(open) != 2 {
		t.Fatalf("open = %d, %v", len(open), err)
	}
	// Unknown filter behaves as "all".
	all, err := svc.ListForCustomer(ctx, c.ID, "whatever")
	if err != nil || len(all) != 2 {
		t.Fatalf("all = %d, %v", len(all), err)
	}
}

func TestTicketService_CloseOwnershipAndMonotonic(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	a, _ := repo.CreateCustomer(ctx, db, "Alice Johnson", "alice@techcorp.com", "TechCorp Inc.")
	b, _ := repo.CreateCustomer(ctx, db, "Bob Smith", "bob@startup.io", "Startup.io")
	svc := &TicketService{DB: db}

	tk, err := svc.Create(ctx, a.ID, "Ticket", "", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Wrong owner cannot close.
	if _, err := svc.Close(ctx, tk.ID, b.ID); err != ErrTicketNotFound {
		t.Fatalf("cross-customer close err = %v", err)
	}

	closed, err := svc.Close(ctx, tk.ID, a.ID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != domain.TicketClosed || closed.ClosedAt == nil {
		t.Errorf("closed: %+v", closed)
	}

	if _, err := svc.Close(ctx, tk.ID, ""); err != ErrTicketClosed {
		t.Fatalf("second close err = %v, want ErrTicketClosed", err)
	}
	if _, err := svc.Close(ctx, "missing", ""); err != ErrTicketNotFound {
		t.Fatalf("missing ticket err = %v", err)
	}
}

func TestTicketService_ListAllEmbedsCustomer(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	if _, _, err := repo.Seed(ctx, db); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	svc := &TicketService{DB: db}

	all, err := svc.ListAll(ctx, "all")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("tickets = %d, want 4", len(all))
	}
	for _, tk := range all {
		if tk.Customer == nil || tk.Customer.Name == "" {
			t.Errorf("customer not embedded on %s", tk.ID)
		}
	}

	open, err := svc.ListAll(ctx, "open")
	if err != nil {
		t.Fatalf("ListAll(open): %v", err)
	}
	if len(open) != 4 { // 3 open + 1 in_progress
		t.Errorf("open tickets = %d, want 4", len(open))
	}
}

func TestCustomerAndMessageServices(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	cs := &CustomerService{DB: db}
	ms := &MessageService{DB: db}

	counts, seeded, err := cs.Seed(ctx)
	if err != nil || !seeded {
		t.Fatalf("Seed: %+v, %v, %v", counts, seeded, err)
	}

	customers, err := cs.List(ctx)
	if err != nil || len(customers) != 5 {
		t.Fatalf("List = %d, %v", len(customers), err)
	}

	alice := customers[0]
	msgs, err := ms.List(ctx, alice.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("alice messages = %d, want 2", len(msgs))
	}
	if msgs[0].Direction != domain.DirectionInbound || msgs[1].Direction != domain.DirectionOutbound {
		t.Errorf("order: %s then %s", msgs[0].Direction, msgs[1].Direction)
	}

	if _, err := ms.List(ctx, "ghost"); err != ErrCustomerNotFound {
		t.Errorf("missing customer err = %v", err)
	}
	if _, err := cs.Get(ctx, "ghost"); err != ErrCustomerNotFound {
		t.Errorf("Get missing err = %v", err)
	}
}
