package store

import "time"

type CommandStatus string

const (
	StatusPending   CommandStatus = "PENDING"
	StatusRunning   CommandStatus = "RUNNING"
	StatusCompleted CommandStatus = "COMPLETED"
	StatusFailed    CommandStatus = "FAILED"
	StatusRejected  CommandStatus = "REJECTED"
)

// Terminal reports whether no further transition is permitted out of s.
func (s CommandStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected:
		return true
	}
	return false
}

// ProvenanceKeys are the well-known opaque tags threaded through commands and
// events. The core forwards them verbatim and never interprets them.
var ProvenanceKeys = []string{"pack_id", "card_id", "scope", "playbook_version"}

// Command is a unit of requested work. Status is mutated only through the
// command bus; records are retained for audit and never deleted.
type Command struct {
	ID            string `json:"id"`
	WorkspaceID   string `json:"workspace_id"`
	ActorID       string `json:"actor_id"`
	SourceSurface string `json:"source_surface"`

	Intent     string                 `json:"intent"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	RequiresApproval bool          `json:"requires_approval"`
	Status           CommandStatus `json:"status"`
	ParentCommandID  string        `json:"parent_command_id,omitempty"`
	ExecutionID      string        `json:"execution_id,omitempty"`

	ThreadID      string `json:"thread_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SurfaceEvent is an immutable audit record. Seq is assigned by the store and
// is monotonically increasing within a workspace.
type SurfaceEvent struct {
	ID            string `json:"id"`
	Seq           uint64 `json:"seq"`
	WorkspaceID   string `json:"workspace_id"`
	SourceSurface string `json:"source_surface"`
	EventType     string `json:"event_type"`
	ActorID       string `json:"actor_id,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`

	CommandID     string `json:"command_id,omitempty"`
	ThreadID      string `json:"thread_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	ParentEventID string `json:"parent_event_id,omitempty"`
	ExecutionID   string `json:"execution_id,omitempty"`

	// Provenance tags flattened out of the payload for indexed filtering.
	PackID          string `json:"pack_id,omitempty"`
	CardID          string `json:"card_id,omitempty"`
	Scope           string `json:"scope,omitempty"`
	PlaybookVersion string `json:"playbook_version,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ExecutionRecord is the trace persisted after the execution collaborator
// runs an approved command. Provenance fields mirror the command's metadata.
type ExecutionRecord struct {
	ID          string            `json:"id"`
	CommandID   string            `json:"command_id"`
	WorkspaceID string            `json:"workspace_id"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Output      string            `json:"output,omitempty"`
	Provenance  map[string]string `json:"provenance,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
}

// Schedule is a recurring dispatch definition evaluated by the scheduler.
type Schedule struct {
	ID               string                 `json:"id"`
	WorkspaceID      string                 `json:"workspace_id"`
	ActorID          string                 `json:"actor_id"`
	Intent           string                 `json:"intent"`
	Parameters       map[string]interface{} `json:"parameters,omitempty"`
	RequiresApproval bool                   `json:"requires_approval"`
	CronExpr         string                 `json:"cron_expr"`
	Enabled          bool                   `json:"enabled"`
	NextRun          time.Time              `json:"next_run"`
	LastRun          time.Time              `json:"last_run,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}
