package agent

import (
	"unicode/utf8"

	"github.com/tbourn/go-support-agent/internal/domain"
)

// truncate shortens text to at most n runes, appending an ellipsis when it
// actually cut something.
func truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}

func head(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// BuildPlan produces the execution plan for an intent. Plans are static per
// intent: the first step is always get_customer_profile, the last is always
// generate_response, and any write steps sit in between, parameterized from
// the message text. Steps are numbered from 1.
func BuildPlan(intent domain.Intent, text, customerID string) []domain.PlanStep {
	short := truncate(text, 150)

	plan := []domain.PlanStep{{
		Step:        1,
		Action:      domain.ActionGetCustomerProfile,
		Type:        domain.StepRead,
		Description: "Fetch customer profile and history",
		Params:      map[string]any{"customer_id": customerID},
	}}

	read := func(action domain.Action, description string, params map[string]any) {
		plan = append(plan, domain.PlanStep{
			Step: len(plan) + 1, Action: action, Type: domain.StepRead,
			Description: description, Params: params,
		})
	}
	write := func(action domain.Action, description string, params map[string]any) {
		plan = append(plan, domain.PlanStep{
			Step: len(plan) + 1, Action: action, Type: domain.StepWrite,
			Description: description, Params: params,
		})
	}
	ticketParams := func(titlePrefix, priority, category string) map[string]any {
		return map[string]any{
			"customer_id": customerID,
			"title":       titlePrefix + head(text, 80),
			"description": short,
			"priority":    priority,
			"category":    category,
		}
	}

	switch intent {
	case domain.IntentPricingInquiry:
		read(domain.ActionSearchKB, "Search knowledge base for pricing information",
			map[string]any{"query": "pricing plans cost subscription student discount"})

	case domain.IntentBugReport:
		read(domain.ActionGetOpenTickets, "Check for existing tickets from customer",
			map[string]any{"customer_id": customerID})
		read(domain.ActionSearchKB, "Search troubleshooting guides",
			map[string]any{"query": "troubleshooting error fix"})
		write(domain.ActionCreateTicket, "Create support ticket for bug report",
			ticketParams("Bug Report: ", "high", "bug"))

	case domain.IntentIntegrationHelp:
		read(domain.ActionSearchKB, "Search integration documentation",
			map[string]any{"query": "integration api webhook connect 401 error"})
		read(domain.ActionGetOpenTickets, "Check for existing integration tickets",
			map[string]any{"customer_id": customerID})
		write(domain.ActionCreateTicket, "Create integration support ticket",
			ticketParams("Integration Help: ", "high", "integration"))

	case domain.IntentBillingIssue:
		read(domain.ActionGetOpenTickets, "Check for existing billing tickets",
			map[string]any{"customer_id": customerID})
		read(domain.ActionSearchKB, "Search billing documentation",
			map[string]any{"query": "billing invoice payment refund account"})
		write(domain.ActionCreateTicket, "Create billing support ticket",
			ticketParams("Billing Issue: ", "medium", "billing"))

	case domain.IntentAccountHelp:
		read(domain.ActionSearchKB, "Search account management docs",
			map[string]any{"query": "account password login profile settings security"})

	case domain.IntentTechnicalSupport:
		read(domain.ActionGetOpenTickets, "Check existing support tickets",
			map[string]any{"customer_id": customerID})
		read(domain.ActionSearchKB, "Search troubleshooting guides",
			map[string]any{"query": "troubleshooting help support"})
		write(domain.ActionCreateTicket, "Create technical support ticket",
			ticketParams("Support Request: ", "medium", "support"))

	case domain.IntentFeatureRequest:
		read(domain.ActionGetOpenTickets, "Check for similar feature requests",
			map[string]any{"customer_id": customerID})
		write(domain.ActionCreateTicket, "Create feature request ticket",
			ticketParams("Feature Request: ", "low", "feature"))

	case domain.IntentEscalationRequest:
		read(domain.ActionGetOpenTickets, "Review all open tickets",
			map[string]any{"customer_id": customerID})
		write(domain.ActionEscalateToHuman, "Escalate to human support agent",
			map[string]any{"customer_id": customerID, "reason": short})

	default: // general_question
		read(domain.ActionSearchKB, "Search knowledge base for relevant info",
			map[string]any{"query": head(text, 100)})
	}

	plan = append(plan, domain.PlanStep{
		Step:        len(plan) + 1,
		Action:      domain.ActionGenerateResponse,
		Type:        domain.StepRead,
		Description: "Generate agent response based on gathered context",
		Params:      map[string]any{},
	})
	return plan
}
