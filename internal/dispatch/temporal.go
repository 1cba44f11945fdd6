package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	temporalworker "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"example.com/bazaar-store/internal/mirror"
)

const (
	upsertTaskQueue      = "storefront-mirror-task-queue"
	upsertWorkflowName   = "mirror.upsert"
	upsertActivityName   = "mirror.upsert.row"
	upsertActivityBudget = 10 * time.Second
)

// ErrNoMirror is returned by the activity when the storefront is local-only
// by the time the write runs.
var ErrNoMirror = errors.New("no remote mirror configured")

// UpsertInput is the workflow payload. It carries the row only; credentials
// stay in the storefront process.
type UpsertInput struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// MirrorProvider resolves the mirror in use when the activity runs.
type MirrorProvider func() mirror.Mirror

// UpsertActivities hosts the activity that performs the remote write.
type UpsertActivities struct {
	mirror MirrorProvider
	logger *slog.Logger
}

func NewUpsertActivities(provider MirrorProvider, logger *slog.Logger) *UpsertActivities {
	return &UpsertActivities{mirror: provider, logger: logger}
}

// UpsertActivity writes one row to the current mirror.
func (a *UpsertActivities) UpsertActivity(ctx context.Context, input UpsertInput) error {
	m := a.mirror()
	if m == nil {
		return temporal.NewNonRetryableApplicationError(ErrNoMirror.Error(), "MirrorNotConfigured", ErrNoMirror)
	}
	if err := m.Upsert(ctx, input.Key, input.Value); err != nil {
		a.logger.Warn("activity upsert failed", "key", input.Key, "error", err)
		return err
	}
	a.logger.Debug("activity upsert", "key", input.Key, "bytes", len(input.Value))
	return nil
}

// UpsertWorkflow runs the upsert activity exactly once.
func UpsertWorkflow(ctx workflow.Context, input UpsertInput) error {
	if input.Key == "" {
		return errors.New("key required")
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: upsertActivityBudget,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	if err := workflow.ExecuteActivity(ctx, upsertActivityName, input).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("upsert activity failed", "key", input.Key, "error", err)
		return err
	}
	return nil
}

// RegisterWorker wires the upsert workflow and activity onto the task queue.
func RegisterWorker(c client.Client, provider MirrorProvider, logger *slog.Logger) temporalworker.Worker {
	w := temporalworker.New(c, upsertTaskQueue, temporalworker.Options{})
	w.RegisterWorkflowWithOptions(UpsertWorkflow, workflow.RegisterOptions{Name: upsertWorkflowName})
	activities := NewUpsertActivities(provider, logger.With("component", "dispatch.activities"))
	w.RegisterActivityWithOptions(activities.UpsertActivity, activity.RegisterOptions{Name: upsertActivityName})
	return w
}

// Temporal routes every remote write through an upsert workflow. Starting the
// workflow happens off the caller's goroutine.
type Temporal struct {
	client client.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewTemporal(c client.Client, logger *slog.Logger) *Temporal {
	return &Temporal{client: c, logger: logger.With("component", "dispatch.temporal")}
}

// Dispatch starts a workflow for the row. The mirror argument is ignored: the
// worker resolves the mirror itself so credentials never enter history.
func (t *Temporal) Dispatch(_ mirror.Mirror, key string, value json.RawMessage) {
	t.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), upsertActivityBudget)
		defer cancel()
		options := client.StartWorkflowOptions{
			ID:                       fmt.Sprintf("mirror-upsert-%s-%s", key, uuid.NewString()),
			TaskQueue:                upsertTaskQueue,
			WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
			WorkflowExecutionTimeout: time.Minute,
		}
		we, err := t.client.ExecuteWorkflow(ctx, options, upsertWorkflowName, UpsertInput{Key: key, Value: value})
		if err != nil {
			t.logger.Warn("start upsert workflow failed", "key", key, "error", err)
			return
		}
		t.logger.Debug("upsert workflow dispatched", "workflow_id", we.GetID(), "run_id", we.GetRunID(), "key", key)
	})
}

// Close waits until every pending workflow start has returned.
func (t *Temporal) Close() error {
	t.wg.Wait()
	return nil
}

// TaskQueue exposes the queue name for workers started elsewhere.
func TaskQueue() string {
	return upsertTaskQueue
}
