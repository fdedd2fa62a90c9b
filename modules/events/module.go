// Package events provides the Emit action: it publishes an event on the
// bus and gates the emitting execution's later statements on the direct
// handlers.
package events

import (
	"context"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/event"
	"github.com/arolang/aro/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// execute publishes an event named by the object position, carrying the
// with-clause value as payload:
//
//	Emit notification to "order-confirmed" with confirmed-order
//
// The emitted event shares the triggering event's correlation id. The
// statement completes at dispatch; only statements after it wait for the
// handlers.
func execute(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	name := inv.Object.Name
	if inv.ObjectLiteral != nil {
		name = *inv.ObjectLiteral
	}

	payload := map[string]any{}
	if inv.With != nil {
		v, err := ec.ResolveOperand(ctx, *inv.With)
		if err != nil {
			return nil, err
		}
		if m, ok := v.(map[string]any); ok {
			payload = m
		} else {
			payload = map[string]any{"value": v}
		}
	}

	ev := event.Correlated(name, payload, ec.Trigger().CorrelationID)
	if _, err := ec.Emit(ctx, ev); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Emitted event.", "event", name)
	return map[string]any{"event": name, "payload": payload}, nil
}

// Register registers the action with the registry.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Action{
		Name:         "events",
		Role:         registry.RoleExport,
		Verbs:        []string{"Emit"},
		Prepositions: []string{"to", "with"},
		Execute:      execute,
	})
}
