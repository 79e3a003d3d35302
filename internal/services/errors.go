// Package services defines the business logic for customers, conversations,
// tickets and agent runs. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrCustomerNotFound indicates that the requested customer does not exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrEmptyMessage is returned when an inbound message has no text after
	// trimming whitespace.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrTooLong is returned when an inbound message exceeds the configured
	// maximum length.
	ErrTooLong = errors.New("message too long")

	// ErrEmptyDraft is returned when an approval carries a blank draft text.
	ErrEmptyDraft = errors.New("draft text is empty")

	// ErrNoPendingRun indicates that the customer has no agent run awaiting
	// approval.
	ErrNoPendingRun = errors.New("no agent run pending approval")

	// ErrAlreadyApproved indicates that the latest agent run was already
	// finalized; approving it again is rejected rather than repeated.
	ErrAlreadyApproved = errors.New("agent run already approved")

	// ErrRunNotFound indicates that the requested agent run does not exist.
	ErrRunNotFound = errors.New("agent run not found")

	// ErrUnknownAction is returned when a manual execution names an action
	// outside the closed write-action set.
	ErrUnknownAction = errors.New("unknown action")

	// ErrActionAlreadyExecuted is returned when a write action already has an
	// audit entry for the run; write steps run at most once.
	ErrActionAlreadyExecuted = errors.New("action already executed for this run")

	// ErrTicketNotFound indicates that the requested ticket does not exist.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrTicketClosed indicates an attempt to close an already closed ticket.
	ErrTicketClosed = errors.New("ticket already closed")
)
