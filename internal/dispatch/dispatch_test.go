package dispatch

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"example.com/bazaar-store/internal/logging"
	"example.com/bazaar-store/internal/mirror"
	"example.com/bazaar-store/internal/mirror/mirrortest"
)

func TestGoroutineDispatchWritesRow(t *testing.T) {
	fake := mirrortest.New(nil)
	d := NewGoroutine(time.Second, logging.Discard())

	d.Dispatch(fake, "bannerText", json.RawMessage(`"hello"`))
	require.NoError(t, d.Close())

	row, ok := fake.Row("bannerText")
	require.True(t, ok)
	assert.JSONEq(t, `"hello"`, string(row))
}

func TestGoroutineDispatchSwallowsFailure(t *testing.T) {
	fake := mirrortest.New(nil)
	fake.UpsertErr = errors.New("offline")
	d := NewGoroutine(time.Second, logging.Discard())

	d.Dispatch(fake, "orders", json.RawMessage(`[]`))
	d.Dispatch(fake, "orders", json.RawMessage(`[]`))
	d.Wait()

	assert.Equal(t, []string{"orders", "orders"}, fake.Upserts())
	_, ok := fake.Row("orders")
	assert.False(t, ok)
}

type upsertSuite struct {
	testsuite.WorkflowTestSuite
}

func (s *upsertSuite) env(m mirror.Mirror) *testsuite.TestWorkflowEnvironment {
	env := s.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(UpsertWorkflow, workflow.RegisterOptions{Name: upsertWorkflowName})
	acts := NewUpsertActivities(func() mirror.Mirror { return m }, logging.Discard())
	env.RegisterActivityWithOptions(acts.UpsertActivity, activity.RegisterOptions{Name: upsertActivityName})
	return env
}

func TestUpsertWorkflowWritesRow(t *testing.T) {
	var s upsertSuite
	fake := mirrortest.New(nil)
	env := s.env(fake)

	env.ExecuteWorkflow(UpsertWorkflow, UpsertInput{Key: "products", Value: json.RawMessage(`[{"id":1}]`)})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	row, ok := fake.Row("products")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":1}]`, string(row))
}

func TestUpsertWorkflowDoesNotRetry(t *testing.T) {
	var s upsertSuite
	fake := mirrortest.New(nil)
	fake.UpsertErr = errors.New("unauthorized")
	env := s.env(fake)

	env.ExecuteWorkflow(UpsertWorkflow, UpsertInput{Key: "cart", Value: json.RawMessage(`[]`)})

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
	assert.Len(t, fake.Upserts(), 1)
}

func TestUpsertWorkflowWithoutMirror(t *testing.T) {
	var s upsertSuite
	env := s.env(nil)

	env.ExecuteWorkflow(UpsertWorkflow, UpsertInput{Key: "cart", Value: json.RawMessage(`[]`)})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	assert.Contains(t, env.GetWorkflowError().Error(), ErrNoMirror.Error())
}

func TestUpsertWorkflowRequiresKey(t *testing.T) {
	var s upsertSuite
	env := s.env(mirrortest.New(nil))

	env.ExecuteWorkflow(UpsertWorkflow, UpsertInput{})

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}
