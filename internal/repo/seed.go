// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file seeds the demo dataset: five customers with a
// handful of messages, tickets and activity events.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-support-agent/internal/domain"
)

// SeedCounts reports how many rows of each kind a seed run inserted.
type SeedCounts struct {
	Customers int `json:"customers"`
	Messages  int `json:"messages"`
	Tickets   int `json:"tickets"`
	Events    int `json:"events"`
}

func strPtr(s string) *string { return &s }

// Seed populates the demo dataset. It is idempotent: when any customer row
// already exists it inserts nothing and returns seeded=false.
func Seed(ctx context.Context, db *gorm.DB) (counts SeedCounts, seeded bool, err error) {
	n, err := CountCustomers(ctx, db)
	if err != nil {
		return counts, false, err
	}
	if n > 0 {
		return counts, false, nil
	}

	type custSpec struct{ name, email, company string }
	specs := []custSpec{
		{"Alice Johnson", "alice@techcorp.com", "TechCorp Inc."},
		{"Bob Smith", "bob@startup.io", "Startup.io"},
		{"Carol Williams", "carol@enterprise.com", "Enterprise Solutions"},
		{"David Brown", "david@smallbiz.net", "SmallBiz Network"},
		{"Eva Martinez", "eva@globaltech.org", "GlobalTech Organization"},
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customers := make([]*domain.Customer, 0, len(specs))
		for _, s := range specs {
			c, err := CreateCustomer(ctx, tx, s.name, s.email, s.company)
			if err != nil {
				return err
			}
			customers = append(customers, c)
		}
		counts.Customers = len(customers)

		type msgSpec struct {
			cust      int
			direction domain.Direction
			channel   domain.Channel
			subject   *string
			body      string
		}
		msgs := []msgSpec{
			{0, domain.DirectionInbound, domain.ChannelEmail, strPtr("Question about pricing"), "Hi, I'd like to know more about your enterprise pricing plans."},
			{0, domain.DirectionOutbound, domain.ChannelEmail, strPtr("Re: Question about pricing"), "Hello Alice, thank you for your interest! Our enterprise plan starts at $99/month."},
			{1, domain.DirectionInbound, domain.ChannelChat, nil, "Is there a free trial available?"},
			{2, domain.DirectionInbound, domain.ChannelEmail, strPtr("Integration support needed"), "We need help integrating your API with our existing systems."},
			{3, domain.DirectionInbound, domain.ChannelEmail, strPtr("Bug report"), "I found a bug in the dashboard - charts are not loading properly."},
		}
		for _, m := range msgs {
			if _, err := CreateMessage(ctx, tx, customers[m.cust].ID, m.direction, m.channel, m.subject, m.body); err != nil {
				return err
			}
		}
		counts.Messages = len(msgs)

		type ticketSpec struct {
			cust        int
			title, desc string
			status      domain.TicketStatus
			priority    domain.TicketPriority
		}
		tickets := []ticketSpec{
			{0, "Upgrade to Enterprise Plan", "Customer wants to upgrade from Pro to Enterprise", domain.TicketOpen, domain.PriorityMedium},
			{2, "API Integration Assistance", "Need technical support for REST API integration", domain.TicketInProgress, domain.PriorityHigh},
			{3, "Dashboard Bug Fix", "Charts not loading in analytics dashboard", domain.TicketOpen, domain.PriorityUrgent},
			{4, "Feature Request: Export", "Request for CSV export functionality", domain.TicketOpen, domain.PriorityLow},
		}
		for _, t := range tickets {
			tk, err := CreateTicket(ctx, tx, customers[t.cust].ID, t.title, t.desc, t.priority, "")
			if err != nil {
				return err
			}
			if t.status != domain.TicketOpen {
				if err := tx.Model(&domain.Ticket{}).Where("id = ?", tk.ID).
					Update("status", t.status).Error; err != nil {
					return err
				}
			}
		}
		counts.Tickets = len(tickets)

		type eventSpec struct {
			cust            int
			eventType, desc string
		}
		events := []eventSpec{
			{0, "login", "User logged in from new device"},
			{0, "page_view", "Viewed pricing page"},
			{1, "signup", "New user registration"},
			{2, "purchase", "Purchased Enterprise plan"},
			{3, "support_request", "Submitted bug report via dashboard"},
			{4, "login", "Regular login"},
		}
		for _, e := range events {
			if _, err := CreateEvent(ctx, tx, customers[e.cust].ID, e.eventType, e.desc, ""); err != nil {
				return err
			}
		}
		counts.Events = len(events)
		return nil
	})
	if err != nil {
		return SeedCounts{}, false, err
	}
	return counts, true, nil
}
