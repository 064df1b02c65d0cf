package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus enumerates workflow execution states. Transitions are
// monotone: once completed or failed, no further mutation.
type WorkflowStatus string

const (
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// WorkflowExecution is one run of a workflow definition. Context is the bag
// of step results keyed by step id. CurrentStep is the index of the last
// completed step; resume picks up at CurrentStep+1.
type WorkflowExecution struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	WorkflowName string          `json:"workflow_name" db:"workflow_name"`
	Status       WorkflowStatus  `json:"status" db:"status"`
	Context      json.RawMessage `json:"context" db:"context"`
	CurrentStep  int             `json:"current_step" db:"current_step"`
	Error        string          `json:"error" db:"error"`
	StartedAt    time.Time       `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at" db:"completed_at"`
}

// WorkflowFailure is the audit record written in the same transaction that
// flips a WorkflowExecution to failed.
type WorkflowFailure struct {
	WorkflowID   uuid.UUID       `json:"workflow_id" db:"workflow_id"`
	FailedStep   string          `json:"failed_step" db:"failed_step"`
	ErrorMessage string          `json:"error_message" db:"error_message"`
	Context      json.RawMessage `json:"context" db:"context"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
