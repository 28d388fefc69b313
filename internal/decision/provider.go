package decision

import (
	"context"
	"errors"

	"github.com/crewline/foreman/internal/model"
)

var (
	// ErrInvalidInput reports a request the engine cannot decide on.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoAnswer reports that the primary provider produced no usable answer.
	ErrNoAnswer = errors.New("no answer from provider")
)

// Provider is the primary decision source, typically an AI planning service.
// A provider failure of any kind, including a missed deadline, routes the
// operation to the deterministic rule engine instead of surfacing an error.
// Empty and zero-value answers are treated as ErrNoAnswer.
type Provider interface {
	// PrioritizeTasks proposes an ordering of the given tasks. The engine
	// reconciles the proposal against its input, so providers may reorder
	// but never add or alter tasks.
	PrioritizeTasks(ctx context.Context, tasks []model.Task, wctx model.WorkerContext) ([]model.Task, error)

	// PredictLifecycle estimates completion and risk for a single task.
	PredictLifecycle(ctx context.Context, task model.Task) (model.TaskPrediction, error)

	// ResolveConflict merges two divergent offline edits of the same task.
	ResolveConflict(ctx context.Context, local, remote model.TaskPatch, original model.Task) (model.ConflictResolution, error)
}
