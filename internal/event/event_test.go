package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arolang/aro/internal/lang"
)

func handlerSet(name, activity string, guard *lang.StateGuard) *lang.FeatureSet {
	return &lang.FeatureSet{Name: name, Activity: activity, Guard: guard}
}

func TestBus_GuardFiltering(t *testing.T) {
	bus := NewBus(func(context.Context, *lang.FeatureSet, Event) error { return nil })

	confirmed := handlerSet("order-updated", "", &lang.StateGuard{Clauses: []lang.GuardClause{
		{Field: "status", Values: []any{"confirmed", "shipped"}},
	}})
	unguarded := handlerSet("order-updated", "", nil)
	bus.Register(confirmed)
	bus.Register(unguarded)

	matched := bus.Handlers(New("order-updated", map[string]any{"status": "placed"}))
	require.Len(t, matched, 1)
	assert.Same(t, unguarded, matched[0])

	matched = bus.Handlers(New("order-updated", map[string]any{"status": "shipped"}))
	assert.Len(t, matched, 2)

	// A guard on a missing payload field never matches.
	matched = bus.Handlers(New("order-updated", map[string]any{}))
	require.Len(t, matched, 1)
	assert.Same(t, unguarded, matched[0])
}

func TestBus_ObserverScopeMatching(t *testing.T) {
	bus := NewBus(func(context.Context, *lang.FeatureSet, Event) error { return nil })

	euObserver := handlerSet("order-repository Observer", "eu", nil)
	usObserver := handlerSet("order-repository Observer", "us", nil)
	bus.Register(euObserver)
	bus.Register(usObserver)

	matched := bus.Handlers(New("order-repository Observer", map[string]any{"scope": "eu"}))
	require.Len(t, matched, 1)
	assert.Same(t, euObserver, matched[0])
}

func TestBus_DispatchWaitCoversDirectHandlers(t *testing.T) {
	var mu sync.Mutex
	var completed []string

	bus := NewBus(func(_ context.Context, fs *lang.FeatureSet, _ Event) error {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, fs.Activity)
		return nil
	})
	bus.Register(handlerSet("order-confirmed", "first", nil))
	bus.Register(handlerSet("order-confirmed", "second", nil))

	wait := bus.Dispatch(context.Background(), New("order-confirmed", nil))
	require.NoError(t, wait.Await(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"first", "second"}, completed)
}

func TestBus_HandlerFailureIsIsolated(t *testing.T) {
	var mu sync.Mutex
	var succeeded int

	bus := NewBus(func(_ context.Context, fs *lang.FeatureSet, _ Event) error {
		if fs.Activity == "failing" {
			return errors.New("handler blew up")
		}
		mu.Lock()
		defer mu.Unlock()
		succeeded++
		return nil
	})
	bus.Register(handlerSet("order-confirmed", "failing", nil))
	bus.Register(handlerSet("order-confirmed", "healthy", nil))

	wait := bus.Dispatch(context.Background(), New("order-confirmed", nil))
	require.NoError(t, wait.Await(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, succeeded)
}

func TestBus_DispatchWithoutHandlersResolvesImmediately(t *testing.T) {
	bus := NewBus(func(context.Context, *lang.FeatureSet, Event) error {
		t.Fatal("no handler should run")
		return nil
	})

	wait := bus.Dispatch(context.Background(), New("nobody-listens", nil))
	select {
	case <-wait.Done():
	default:
		t.Fatal("expected an already-resolved wait handle")
	}
}

func TestEvent_Correlation(t *testing.T) {
	ev := New("order-created", map[string]any{"id": "A-1"})
	assert.NotEmpty(t, ev.CorrelationID)

	follow := Correlated("order-confirmed", nil, ev.CorrelationID)
	assert.Equal(t, ev.CorrelationID, follow.CorrelationID)

	fresh := Correlated("order-confirmed", nil, "")
	assert.NotEmpty(t, fresh.CorrelationID)
	assert.NotEqual(t, ev.CorrelationID, fresh.CorrelationID)
}
