package runtime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/parser"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/runtime"
	"github.com/arolang/aro/internal/scheduler"
	"github.com/arolang/aro/internal/testutil"
)

const startUp = `
feature-set "Start-Up" {
	Show ready of "ok"
}
`

func TestRuntime_OrderConfirmationFlow(t *testing.T) {
	h := testutil.Compile(t, startUp+`
feature-set "POST /orders" {
	Extract order from event.payload
	Store order to order-repository
	Return created to caller with order
}

feature-set "POST /orders/confirm" {
	Extract order-id from event.payload.orderId
	Retrieve order from order-repository where id = order-id
	Accept confirmed-order from order with { from: "placed", to: "confirmed" }
	Store confirmed-order to order-repository
	Return success to caller with confirmed-order
}
`)
	ctx := h.Start(t)

	placed := h.Trigger(ctx, "POST /orders", map[string]any{"id": "A-1", "status": "placed"})
	require.NoError(t, placed.Err)
	require.True(t, placed.Responded)

	confirmed := h.Trigger(ctx, "POST /orders/confirm", map[string]any{"orderId": "A-1"})
	require.NoError(t, confirmed.Err)
	require.True(t, confirmed.Responded)

	response, ok := confirmed.Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "success", response["status"])
	assert.Equal(t, map[string]any{"id": "A-1", "status": "confirmed"}, response["value"])

	// The update superseded the original entry.
	latest, ok := h.Runtime.Repositories().At("order-repository", "", 0)
	require.True(t, ok)
	assert.Equal(t, "confirmed", latest.(map[string]any)["status"])
	assert.Equal(t, 1, h.Runtime.Repositories().Len("order-repository", ""))
}

func TestRuntime_AcceptRejectsWrongState(t *testing.T) {
	h := testutil.Compile(t, startUp+`
feature-set "POST /orders/confirm" {
	Extract order-id from event.payload.orderId
	Retrieve order from order-repository where id = order-id
	Accept confirmed-order from order with { from: "placed", to: "confirmed" }
	Store confirmed-order to order-repository
	Return success to caller with confirmed-order
}
`)
	ctx := h.Start(t)
	h.Runtime.Repositories().Store(ctx, "order-repository", "", map[string]any{"id": "A-1", "status": "placed"})

	first := h.Trigger(ctx, "POST /orders/confirm", map[string]any{"orderId": "A-1"})
	require.NoError(t, first.Err)

	second := h.Trigger(ctx, "POST /orders/confirm", map[string]any{"orderId": "A-1"})
	require.Error(t, second.Err)
	assert.Equal(t, failure.KindStateMismatch, failure.KindOf(second.Err))
	assert.Contains(t, second.Err.Error(), "expected placed")
	assert.Contains(t, second.Err.Error(), "actual confirmed")

	// The failed transition did not write anything.
	assert.Equal(t, 1, h.Runtime.Repositories().Len("order-repository", ""))
}

func TestRuntime_RetrieveMissingEntityFailsInBusinessLanguage(t *testing.T) {
	h := testutil.Compile(t, startUp+`
feature-set "GET /users" {
	Extract user-id from event.payload.userId
	Retrieve user from user-repository where id = user-id
	Return found to caller with user
}
`)
	ctx := h.Start(t)

	result := h.Trigger(ctx, "GET /users", map[string]any{"userId": "42"})
	require.Error(t, result.Err)
	assert.Equal(t, failure.KindAction, failure.KindOf(result.Err))
	assert.Contains(t, result.Err.Error(), "could not retrieve user from user-repository where id = user-id")
	assert.Contains(t, result.Err.Error(), "no entity in 'user-repository' matches")
	assert.False(t, result.Responded)
}

func TestRuntime_ObserversAreIndependent(t *testing.T) {
	h := testutil.Compile(t, startUp+`
feature-set "POST /orders" {
	Extract order from event.payload
	Store order to order-repository
	Return created to caller with order
}

feature-set "order-repository Observer" {
	Extract change from event.payload.newValue
	Show audit of change
}
`)
	ctx := h.Start(t)

	result := h.Trigger(ctx, "POST /orders", map[string]any{"id": "A-1", "status": "placed"})
	require.NoError(t, result.Err)

	// The observer runs as its own execution; its Show effect lands in the
	// recorder under the observer's name.
	require.Eventually(t, func() bool {
		return len(h.Recorder.ByFeatureSet("order-repository Observer")) == 1
	}, time.Second, 10*time.Millisecond)

	effect := h.Recorder.ByFeatureSet("order-repository Observer")[0]
	assert.Equal(t, map[string]any{"id": "A-1", "status": "placed"}, effect.Value)
}

func TestRuntime_ObserverFailureNeverReachesTheMutator(t *testing.T) {
	h := testutil.Compile(t, startUp+`
feature-set "POST /orders" {
	Extract order from event.payload
	Store order to order-repository
	Return created to caller with order
}

feature-set "order-repository Observer" when changeType = "created" {
	Retrieve missing from audit-repository where id = "nope"
	Show audit of missing
}

feature-set "ledger Observer" {
	Show noop of "never"
}
`)
	ctx := h.Start(t)

	result := h.Trigger(ctx, "POST /orders", map[string]any{"id": "A-1", "status": "placed"})
	require.NoError(t, result.Err, "an observer failure must not surface to the mutating execution")
	require.True(t, result.Responded)

	// Give the failing observer time to run; it must produce no effect.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.Recorder.ByFeatureSet("order-repository Observer"))
}

func TestRuntime_GuardGatesActivation(t *testing.T) {
	h := testutil.Compile(t, startUp+`
feature-set "order-updated" when status = "confirmed", "shipped" {
	Extract order from event.payload
	Return handled to caller with order
}
`)
	ctx := h.Start(t)

	handled := h.Trigger(ctx, "order-updated", map[string]any{"status": "shipped", "id": "A-1"})
	require.NoError(t, handled.Err)
	require.True(t, handled.Responded)
	assert.Equal(t, "handled", handled.Response.(map[string]any)["status"])

	// A payload outside the guard leaves the event unhandled.
	nobody := h.Trigger(ctx, "order-updated", map[string]any{"status": "placed"})
	assert.False(t, nobody.Responded)
	assert.NoError(t, nobody.Err)
}

func TestRuntime_EmitBlocksLaterStatementsOnDirectHandlers(t *testing.T) {
	h := testutil.Compile(t, startUp+`
feature-set "POST /orders/confirm" {
	Extract order from event.payload
	Emit confirmation to "order-confirmed" with order
	Retrieve notes from notification-repository
	Return success to caller with notes
}

feature-set "order-confirmed" {
	Extract order from event.payload
	Compute note from order with { kind: "confirmation" }
	Store note to notification-repository
}
`)
	ctx := h.Start(t)

	// The statements after Emit run only once the direct handler finished,
	// so the stored note is always visible.
	for i := 0; i < 5; i++ {
		result := h.Trigger(ctx, "POST /orders/confirm", map[string]any{"id": "A-1", "status": "placed"})
		require.NoError(t, result.Err)
		require.True(t, result.Responded)
		notes := result.Response.(map[string]any)["value"].([]any)
		assert.Len(t, notes, i+1)
	}
}

func TestRuntime_EmitCompletesWithASingleWorker(t *testing.T) {
	h := testutil.CompileOptions(t, startUp+`
feature-set "POST /orders/confirm" {
	Extract order from event.payload
	Emit confirmation to "order-confirmed" with order
	Retrieve notes from notification-repository
	Return success to caller with notes
}

feature-set "order-confirmed" {
	Extract order from event.payload
	Compute note from order with { kind: "confirmation" }
	Store note to notification-repository
}
`, []runtime.Option{runtime.WithWorkers(1)})
	ctx := h.Start(t)

	// The emitting statements hold the only worker while the handler runs;
	// the handler's statements must still get served.
	done := make(chan scheduler.Result, 1)
	go func() {
		done <- h.Trigger(ctx, "POST /orders/confirm", map[string]any{"id": "A-1", "status": "placed"})
	}()
	select {
	case result := <-done:
		require.NoError(t, result.Err)
		require.True(t, result.Responded)
		assert.Len(t, result.Response.(map[string]any)["value"].([]any), 1)
	case <-time.After(3 * time.Second):
		t.Fatal("trigger did not complete with a single worker")
	}
}

func TestRuntime_EmitWaitsForDirectHandlersOnly(t *testing.T) {
	gate := &testutil.GateModule{Release: make(chan struct{})}
	h := testutil.Compile(t, startUp+`
feature-set "POST /orders/confirm" {
	Extract order from event.payload
	Emit confirmation to "order-confirmed" with order
	Return success to caller with order
}

feature-set "order-confirmed" {
	Extract order from event.payload
	Emit audit to "order-audited" with order
}

feature-set "order-audited" {
	Hold token from "archived"
	Show archive of token
}
`, gate)
	ctx := h.Start(t)

	// The second-level handler is held open; the emitter must return after
	// its direct handler alone.
	done := make(chan scheduler.Result, 1)
	go func() {
		done <- h.Trigger(ctx, "POST /orders/confirm", map[string]any{"id": "A-1"})
	}()
	select {
	case result := <-done:
		require.NoError(t, result.Err)
		require.True(t, result.Responded)
	case <-time.After(2 * time.Second):
		t.Fatal("the emitter waited for its handler's own cascade")
	}
	assert.Empty(t, h.Recorder.ByFeatureSet("order-audited"))

	close(gate.Release)
	require.Eventually(t, func() bool {
		return len(h.Recorder.ByFeatureSet("order-audited")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRuntime_StartUpRunsAndShutdownFollows(t *testing.T) {
	h := testutil.Compile(t, `
feature-set "Start-Up" {
	Show banner of "starting"
}

feature-set "Shut-Down" {
	Show banner of "stopping"
}
`)
	ctx := h.Start(t)

	effects := h.Recorder.ByFeatureSet("Start-Up")
	require.Len(t, effects, 1)
	assert.Equal(t, "starting", effects[0].Value)

	require.NoError(t, h.Runtime.Shutdown(ctx, false))
	stopped := h.Recorder.ByFeatureSet("Shut-Down")
	require.Len(t, stopped, 1)
	assert.Equal(t, "stopping", stopped[0].Value)
}

func TestRuntime_UnknownVerbIsALoadTimeError(t *testing.T) {
	sets, err := parser.ParseUnit("bad.aro", `
feature-set "Start-Up" {
	Teleport order to somewhere
}
`)
	require.NoError(t, err)
	program, err := parser.BuildProgram(sets)
	require.NoError(t, err)

	_, err = runtime.New(program, registry.New())
	require.Error(t, err)
	assert.Equal(t, failure.KindConfiguration, failure.KindOf(err))
	assert.Contains(t, err.Error(), "Teleport")
}
