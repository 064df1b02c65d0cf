// Package tools maps action names to executable functions and enforces
// safety policy on every dispatch: batch limits, and an approval gate around
// destructive actions. The registry is the only call site into
// provider-mutating functions; workflow steps reach providers through it.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// ToolType classifies what a tool may do to external state.
type ToolType string

const (
	ReadOnly    ToolType = "read_only"
	Destructive ToolType = "destructive"
)

// Auto-approval thresholds for destructive dispatches.
const (
	autoApproveLimit = 10
	auditedLimit     = 50
)

var (
	// ErrUnknownAction is returned when no tool carries the requested name.
	ErrUnknownAction = errors.New("unknown action")

	// ErrApprovalPending is returned when a destructive dispatch exceeds the
	// audited ceiling. The error message carries the approval id the caller
	// must have approved before re-invoking.
	ErrApprovalPending = errors.New("approval pending")

	// ErrBatchLimitExceeded is returned when the inferred batch size is over
	// the tool's registered limit.
	ErrBatchLimitExceeded = errors.New("batch limit exceeded")
)

// Func is an executable tool. Inputs arrive fully resolved.
type Func func(ctx context.Context, inputs map[string]interface{}) (interface{}, error)

// Metadata declares a tool's safety envelope at registration time.
type Metadata struct {
	// Type defaults to ReadOnly.
	Type ToolType
	// BatchLimit caps the inferred batch size. Zero means unlimited.
	BatchLimit int
	// RequiresApproval gates large destructive batches. Defaults to true
	// for destructive tools.
	RequiresApproval *bool
}

type tool struct {
	fn               Func
	toolType         ToolType
	batchLimit       int
	requiresApproval bool
}

// PendingApproval is a parked destructive dispatch awaiting sign-off.
type PendingApproval struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	BatchSize int                    `json:"batch_size"`
	Inputs    map[string]interface{} `json:"inputs"`
	CreatedAt time.Time              `json:"created_at"`
}

// Registry holds registered tools and pending approvals. Safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]tool
	pending  map[string]*PendingApproval
	approved map[string]bool
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]tool),
		pending:  make(map[string]*PendingApproval),
		approved: make(map[string]bool),
		now:      time.Now,
	}
}

// Register adds a tool under name, replacing any previous registration.
func (r *Registry) Register(name string, fn Func, md Metadata) {
	t := tool{fn: fn, toolType: md.Type, batchLimit: md.BatchLimit}
	if t.toolType == "" {
		t.toolType = ReadOnly
	}
	if md.RequiresApproval != nil {
		t.requiresApproval = *md.RequiresApproval
	} else {
		t.requiresApproval = t.toolType == Destructive
	}

	r.mu.Lock()
	r.tools[name] = t
	r.mu.Unlock()
}

// Execute dispatches an action with resolved inputs, enforcing the batch
// limit and the approval gate before the tool function runs.
func (r *Registry) Execute(ctx context.Context, action string, inputs map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	t, ok := r.tools[action]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	size := InferBatchSize(inputs)

	if t.batchLimit > 0 && size > t.batchLimit {
		return nil, fmt.Errorf("%w: %s got batch of %d, limit is %d", ErrBatchLimitExceeded, action, size, t.batchLimit)
	}

	if t.toolType == Destructive && t.requiresApproval {
		if err := r.approveOrPark(action, size, inputs); err != nil {
			return nil, err
		}
	}

	return t.fn(ctx, inputs)
}

// approveOrPark applies the tiered approval policy. Small batches pass,
// mid-size batches pass with an audit log entry, large batches park as a
// pending approval and fail the dispatch.
func (r *Registry) approveOrPark(action string, size int, inputs map[string]interface{}) error {
	if size <= autoApproveLimit {
		return nil
	}
	if size <= auditedLimit {
		logger.Warn("[Tools] destructive batch auto-approved with audit",
			"action", action, "batch_size", size)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A previously granted approval for this exact action+size is consumed
	// by the re-invocation.
	for id, p := range r.pending {
		if r.approved[id] && p.Action == action && p.BatchSize == size {
			delete(r.pending, id)
			delete(r.approved, id)
			logger.Info("[Tools] approved dispatch consumed", "action", action, "approval_id", id)
			return nil
		}
	}

	id := fmt.Sprintf("%s_%d", action, r.now().UnixMilli())
	r.pending[id] = &PendingApproval{
		ID:        id,
		Action:    action,
		BatchSize: size,
		Inputs:    inputs,
		CreatedAt: r.now().UTC(),
	}
	logger.Warn("[Tools] destructive batch parked for approval",
		"action", action, "batch_size", size, "approval_id", id)
	return fmt.Errorf("%w: batch of %d requires approval, id %s", ErrApprovalPending, size, id)
}

// Approve marks a pending approval as granted. The next matching dispatch
// consumes it.
func (r *Registry) Approve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; !ok {
		return fmt.Errorf("no pending approval %s", id)
	}
	r.approved[id] = true
	return nil
}

// PendingApprovals lists parked dispatches for the admin surface.
func (r *Registry) PendingApprovals() []*PendingApproval {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PendingApproval, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, p)
	}
	return out
}

// Actions returns the registered action names.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// InferBatchSize derives how many records a dispatch touches. Precedence:
// approval-split lists, then contacts, then leads, then 1.
func InferBatchSize(inputs map[string]interface{}) int {
	autoN, hasAuto := listLen(inputs["auto_approve_list"])
	reviewN, hasReview := listLen(inputs["review_queue"])
	if hasAuto || hasReview {
		return autoN + reviewN
	}
	if n, ok := listLen(inputs["contacts"]); ok {
		return n
	}
	if n, ok := listLen(inputs["leads"]); ok {
		return n
	}
	return 1
}

func listLen(v interface{}) (int, bool) {
	if l, ok := v.([]interface{}); ok {
		return len(l), true
	}
	return 0, false
}
