// Package event implements the event bus and handler registry: named events
// dispatched to every matching feature set, with state-guard filtering and
// a wait handle covering the direct handler executions.
package event

import (
	"context"
	"sync"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/lang"
	"github.com/google/uuid"
)

// Event is an ephemeral trigger: a name, a structured payload, and a
// correlation id for tracing a cascade.
type Event struct {
	Name          string
	Payload       map[string]any
	CorrelationID string
}

// New builds an event with a fresh correlation id.
func New(name string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Name: name, Payload: payload, CorrelationID: uuid.NewString()}
}

// Correlated builds an event that continues an existing correlation.
func Correlated(name string, payload map[string]any, correlationID string) Event {
	ev := New(name, payload)
	if correlationID != "" {
		ev.CorrelationID = correlationID
	}
	return ev
}

// Wait is the handle an emitter holds on its direct handler executions. It
// covers exactly the dispatched handlers, not their further cascades.
type Wait struct {
	done chan struct{}
}

// Done returns a channel closed once every direct handler has completed.
func (w *Wait) Done() <-chan struct{} {
	return w.done
}

// Await blocks until the direct handlers complete or the context ends.
func (w *Wait) Await(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var closedWait = func() *Wait {
	w := &Wait{done: make(chan struct{})}
	close(w.done)
	return w
}()

// HandlerFunc runs one feature set as an independent execution for an
// event. It returns the execution's failure, if any; the bus isolates
// failures from sibling handlers and from the emitter.
type HandlerFunc func(ctx context.Context, fs *lang.FeatureSet, ev Event) error

// Bus maintains, per event name, the feature sets registered as handlers.
// Registration happens at load time; dispatch is concurrent afterwards.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]*lang.FeatureSet
	invoke   HandlerFunc
}

// NewBus creates a bus that runs handlers through the given invoker.
func NewBus(invoke HandlerFunc) *Bus {
	return &Bus{handlers: make(map[string][]*lang.FeatureSet), invoke: invoke}
}

// Register adds a feature set as a handler for its own name: a built-in
// lifecycle event, a custom event, an HTTP operation id, or a
// "{repository} Observer" pattern.
func (b *Bus) Register(fs *lang.FeatureSet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[fs.Name] = append(b.handlers[fs.Name], fs)
}

// Handlers returns the feature sets whose name and state guard match the
// event. Guards compare against the event payload; observer-pattern
// handlers additionally match the change's scope against their activity.
func (b *Bus) Handlers(ev Event) []*lang.FeatureSet {
	b.mu.RLock()
	registered := b.handlers[ev.Name]
	b.mu.RUnlock()

	var matched []*lang.FeatureSet
	for _, fs := range registered {
		if _, isObserver := lang.ObservedRepository(fs.Name); isObserver {
			scope, _ := ev.Payload["scope"].(string)
			if fs.Activity != scope {
				continue
			}
		}
		if !fs.Guard.Matches(ev.Payload) {
			continue
		}
		matched = append(matched, fs)
	}
	return matched
}

// Dispatch starts one independent execution per matching handler and
// returns a wait handle covering those executions. No ordering holds
// between distinct handlers; each preserves its own statement order. A
// handler's failure is logged and isolated: siblings and the emitter are
// unaffected.
func (b *Bus) Dispatch(ctx context.Context, ev Event) *Wait {
	matched := b.Handlers(ev)
	if len(matched) == 0 {
		return closedWait
	}

	logger := ctxlog.FromContext(ctx).With("event", ev.Name, "correlationID", ev.CorrelationID)
	logger.Debug("Dispatching event.", "handlers", len(matched))

	var wg sync.WaitGroup
	wg.Add(len(matched))
	for _, fs := range matched {
		go func(fs *lang.FeatureSet) {
			defer wg.Done()
			if err := b.invoke(ctx, fs, ev); err != nil {
				logger.Error("Event handler failed.", "featureSet", fs.Name, "error", err)
			}
		}(fs)
	}

	w := &Wait{done: make(chan struct{})}
	go func() {
		wg.Wait()
		close(w.done)
	}()
	return w
}
