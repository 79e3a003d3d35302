// Package domain defines the persistence models and the closed vocabularies
// (intents, actions, ticket states) used throughout the support agent.
// Keeping the vocabularies as typed constants turns an unhandled case into
// something the compiler or a Valid() check can catch instead of a silent
// string fallthrough.
package domain

// Intent is the classified purpose of an inbound customer message.
type Intent string

// The fixed intent vocabulary. Classification never produces a value outside
// this set; unmatched input maps to IntentGeneralQuestion.
const (
	IntentPricingInquiry    Intent = "pricing_inquiry"
	IntentTechnicalSupport  Intent = "technical_support"
	IntentBillingIssue      Intent = "billing_issue"
	IntentFeatureRequest    Intent = "feature_request"
	IntentBugReport         Intent = "bug_report"
	IntentAccountHelp       Intent = "account_help"
	IntentIntegrationHelp   Intent = "integration_help"
	IntentGeneralQuestion   Intent = "general_question"
	IntentEscalationRequest Intent = "escalation_request"
)

// Intents lists the full vocabulary in a stable order.
func Intents() []Intent {
	return []Intent{
		IntentPricingInquiry,
		IntentTechnicalSupport,
		IntentBillingIssue,
		IntentFeatureRequest,
		IntentBugReport,
		IntentAccountHelp,
		IntentIntegrationHelp,
		IntentGeneralQuestion,
		IntentEscalationRequest,
	}
}

// Valid reports whether the intent is part of the fixed vocabulary.
func (i Intent) Valid() bool {
	switch i {
	case IntentPricingInquiry, IntentTechnicalSupport, IntentBillingIssue,
		IntentFeatureRequest, IntentBugReport, IntentAccountHelp,
		IntentIntegrationHelp, IntentGeneralQuestion, IntentEscalationRequest:
		return true
	}
	return false
}

// Action names a single executable plan step.
type Action string

// The closed action set dispatched by the tool executor.
const (
	ActionGetCustomerProfile Action = "get_customer_profile"
	ActionGetOpenTickets     Action = "get_open_tickets"
	ActionSearchKB           Action = "search_kb"
	ActionGenerateResponse   Action = "generate_response"
	ActionCreateTicket       Action = "create_ticket"
	ActionEscalateToHuman    Action = "escalate_to_human"
)

// Valid reports whether the action is part of the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionGetCustomerProfile, ActionGetOpenTickets, ActionSearchKB,
		ActionGenerateResponse, ActionCreateTicket, ActionEscalateToHuman:
		return true
	}
	return false
}

// StepType tags a plan step as side-effect-free or state-mutating.
type StepType string

const (
	// StepRead steps are idempotent and safe to re-execute.
	StepRead StepType = "read"
	// StepWrite steps mutate stored state and must run at most once per run.
	StepWrite StepType = "write"
)

// Direction distinguishes who authored a message.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Channel tags the transport a message arrived on or left through.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
)

// TicketStatus is the lifecycle state of a support ticket. Transitions are
// monotonic: open/in_progress may close, a closed ticket never reopens.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketClosed     TicketStatus = "closed"
)

// Valid reports whether the status is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketClosed:
		return true
	}
	return false
}

// TicketPriority is the urgency assigned to a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the priority is a known level.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
