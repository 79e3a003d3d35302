package domain

import "time"

// Customer is a support account the agent acts on behalf of.
type Customer struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Company   string    `gorm:"size:255" json:"company"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName maps Customer to the customers table.
func (Customer) TableName() string { return "customers" }

// Message is one entry in a customer's conversation history. Inbound rows are
// authored by the customer, outbound rows by the agent.
type Message struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID string    `gorm:"type:char(36);index;not null" json:"customer_id"`
	Direction  Direction `gorm:"size:16;not null;check:direction IN ('inbound','outbound')" json:"direction"`
	Channel    Channel   `gorm:"size:16;not null;default:chat" json:"channel"`
	Subject    *string   `gorm:"size:255" json:"subject,omitempty"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `json:"created_at"`

	Customer *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName maps Message to the messages table.
func (Message) TableName() string { return "messages" }

// Ticket is a tracked support issue. Status moves monotonically: open or
// in_progress rows may close, a closed row never reopens.
type Ticket struct {
	ID          string         `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID  string         `gorm:"type:char(36);index;not null" json:"customer_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      TicketStatus   `gorm:"size:16;not null;default:open" json:"status"`
	Priority    TicketPriority `gorm:"size:16;not null;default:medium" json:"priority"`
	Category    string         `gorm:"size:64" json:"category"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ClosedAt    *time.Time     `json:"closed_at,omitempty"`

	Customer *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
}

// TableName maps Ticket to the tickets table.
func (Ticket) TableName() string { return "tickets" }

// Event is a customer activity record (signup, plan change, login) surfaced
// to the agent through the profile tool.
type Event struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID   string    `gorm:"type:char(36);index;not null" json:"customer_id"`
	EventType    string    `gorm:"size:64;not null" json:"event_type"`
	Description  string    `gorm:"type:text" json:"description"`
	MetadataJSON string    `gorm:"type:text" json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	Customer *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName maps Event to the events table.
func (Event) TableName() string { return "events" }

// AgentRun is one orchestration pass over an inbound message: the classified
// intent, the serialized plan, the drafted reply and, once the run is sent or
// approved, the final reply. FinalizedAt nil means the run still accepts an
// approval; it is set exactly once.
type AgentRun struct {
	ID          string     `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID  string     `gorm:"type:char(36);index;not null" json:"customer_id"`
	InputText   string     `gorm:"type:text;not null" json:"input_text"`
	Intent      Intent     `gorm:"size:32;not null" json:"intent"`
	Confidence  float64    `gorm:"not null" json:"confidence"`
	PlanJSON    string     `gorm:"type:text;not null" json:"-"`
	DraftReply  string     `gorm:"type:text" json:"draft_reply"`
	FinalReply  string     `gorm:"type:text" json:"final_reply"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	Customer  *Customer  `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"-"`
	AuditLogs []AuditLog `gorm:"foreignKey:RunID" json:"audit_logs,omitempty"`
}

// TableName maps AgentRun to the agent_runs table.
func (AgentRun) TableName() string { return "agent_runs" }

// Finalized reports whether the run has been sent or approved.
func (r *AgentRun) Finalized() bool { return r.FinalizedAt != nil }

// AuditLog records one tool execution within a run: the action name, its
// JSON-encoded input and output, and whether it succeeded. Write steps are
// guarded by the presence of a row for (run, tool), so at most one exists
// per write action per run.
type AuditLog struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	RunID          string    `gorm:"type:char(36);index:idx_run_tool;not null" json:"run_id"`
	ToolName       Action    `gorm:"size:64;index:idx_run_tool;not null" json:"tool_name"`
	ToolInputJSON  string    `gorm:"type:text" json:"tool_input"`
	ToolOutputJSON string    `gorm:"type:text" json:"tool_output"`
	Success        bool      `gorm:"not null;default:true" json:"success"`
	CreatedAt      time.Time `json:"created_at"`

	Run *AgentRun `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName maps AuditLog to the audit_logs table.
func (AuditLog) TableName() string { return "audit_logs" }

// GmailToken stores the OAuth credentials of the connected Gmail account.
// One row per address; reconnecting upserts.
type GmailToken struct {
	ID           string     `gorm:"type:char(36);primaryKey" json:"id"`
	Email        string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	AccessToken  string     `gorm:"type:text;not null" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	TokenURI     string     `gorm:"size:255" json:"-"`
	ScopesJSON   string     `gorm:"type:text" json:"-"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName maps GmailToken to the gmail_tokens table.
func (GmailToken) TableName() string { return "gmail_tokens" }
