package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// Retention bounds for CleanupOldWorkflows, in days.
const (
	minRetentionDays = 1
	maxRetentionDays = 365
)

// ToolExecutor dispatches a step's action with resolved inputs. The tool
// registry implements this; its rejections (batch limit, approval pending)
// surface as errors and fail the step.
type ToolExecutor interface {
	Execute(ctx context.Context, action string, inputs map[string]interface{}) (interface{}, error)
}

// Engine runs workflow definitions one step at a time. Many workflows may
// run concurrently; within one execution, steps and context updates are
// strictly sequential.
type Engine struct {
	store Store
	tools ToolExecutor
}

// NewEngine wires an engine with its state store and tool dispatcher.
func NewEngine(store Store, tools ToolExecutor) *Engine {
	return &Engine{store: store, tools: tools}
}

// Run executes a definition from the first step under the given execution
// id. It returns the final context; on step failure, the context as of the
// failure and an error naming the failed step.
//
// State writes are best-effort. A persistence failure is logged and the run
// continues; durability matters for resume, not for single-run completion.
func (e *Engine) Run(ctx context.Context, def *Definition, id uuid.UUID) (map[string]interface{}, error) {
	return e.run(ctx, def, id, map[string]interface{}{}, 0)
}

// Resume continues a non-completed execution at the step after the last
// completed one, reusing its persisted context.
func (e *Engine) Resume(ctx context.Context, def *Definition, id uuid.UUID) (map[string]interface{}, error) {
	wfCtx, lastStep, err := e.ResumeWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, def, id, wfCtx, lastStep)
}

// ResumeWorkflow loads the persisted context and last completed step number
// for a non-completed execution. Dispatch restarts at lastStep+1.
func (e *Engine) ResumeWorkflow(ctx context.Context, id uuid.UUID) (map[string]interface{}, int, error) {
	exec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if exec.Status == domain.WorkflowCompleted {
		return nil, 0, fmt.Errorf("execution %s already completed", id)
	}

	wfCtx := map[string]interface{}{}
	if len(exec.Context) > 0 {
		if err := json.Unmarshal(exec.Context, &wfCtx); err != nil {
			return nil, 0, fmt.Errorf("unmarshal execution context: %w", err)
		}
	}
	return wfCtx, exec.CurrentStep, nil
}

// run executes steps completed..len(steps)-1. completed counts steps already
// done, so steps[completed] is the next one to dispatch.
func (e *Engine) run(ctx context.Context, def *Definition, id uuid.UUID, wfCtx map[string]interface{}, completed int) (map[string]interface{}, error) {
	exec := &domain.WorkflowExecution{
		ID:           id,
		WorkflowName: def.Name,
		Status:       domain.WorkflowRunning,
		Context:      mustMarshal(wfCtx),
		CurrentStep:  completed,
		StartedAt:    time.Now().UTC(),
	}
	if err := e.store.CreateExecution(ctx, exec); err != nil {
		logger.Warn("[Workflow] create execution failed", "workflow", def.Name, "execution_id", id.String(), "error", err.Error())
	}

	for i := completed; i < len(def.Steps); i++ {
		step := def.Steps[i]

		prevID := ""
		if i > 0 {
			prevID = def.Steps[i-1].ID
		}
		inputs := ResolveInputs(step.Inputs, wfCtx, prevID)

		result, err := e.tools.Execute(ctx, step.Action, inputs)
		if err != nil {
			e.failStep(ctx, id, step.ID, err, wfCtx)
			return wfCtx, fmt.Errorf("step %s: %w", step.ID, err)
		}

		wfCtx[step.ID] = result
		if err := e.store.SaveProgress(ctx, id, mustMarshal(wfCtx), i+1); err != nil {
			logger.Warn("[Workflow] save progress failed", "workflow", def.Name, "step", step.ID, "error", err.Error())
		}
		logger.Debug("[Workflow] step completed", "workflow", def.Name, "step", step.ID)
	}

	if err := e.store.Complete(ctx, id, mustMarshal(wfCtx)); err != nil {
		logger.Warn("[Workflow] complete failed", "workflow", def.Name, "execution_id", id.String(), "error", err.Error())
	}
	logger.Info("[Workflow] completed", "workflow", def.Name, "execution_id", id.String(), "steps", len(def.Steps))
	return wfCtx, nil
}

func (e *Engine) failStep(ctx context.Context, id uuid.UUID, stepID string, cause error, wfCtx map[string]interface{}) {
	if err := e.store.Fail(ctx, id, stepID, cause.Error(), mustMarshal(wfCtx)); err != nil {
		logger.Error("[Workflow] fail persist failed", "execution_id", id.String(), "step", stepID, "error", err.Error())
	}
	logger.Error("[Workflow] step failed", "execution_id", id.String(), "step", stepID, "error", cause.Error())
}

// CleanupOldWorkflows deletes completed executions older than the retention
// window. days is clamped to [1, 365].
func (e *Engine) CleanupOldWorkflows(ctx context.Context, days int) (int64, error) {
	if days < minRetentionDays {
		days = minRetentionDays
	}
	if days > maxRetentionDays {
		days = maxRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	n, err := e.store.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info("[Workflow] cleanup removed executions", "count", n, "retention_days", days)
	}
	return n, nil
}

// Stats returns execution outcome aggregates for the admin surface.
func (e *Engine) Stats(ctx context.Context, name string, days int) (*Stats, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return e.store.Stats(ctx, name, since)
}

// mustMarshal encodes a step context. Contexts hold tool results that came
// from JSON or YAML, so marshaling cannot realistically fail; a broken
// context degrades to an empty object rather than losing the run.
func mustMarshal(wfCtx map[string]interface{}) json.RawMessage {
	data, err := json.Marshal(wfCtx)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
