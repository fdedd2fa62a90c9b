// Package transition provides the Accept action, the language's only state
// transition primitive.
package transition

import (
	"context"

	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/state"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// execute validates and applies a state transition:
//
//	Accept confirmed-order from order with { field: "status", from: "placed", to: "confirmed" }
//
// The with clause names the state field and the expected and target values;
// field defaults to "status". A current value that does not match fails with
// the expected/actual pair, and the source entity is never mutated.
func execute(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	current, err := ec.ResolveRef(ctx, inv.Object)
	if err != nil {
		return nil, err
	}
	entity, ok := current.(map[string]any)
	if !ok {
		return nil, failure.New(failure.KindAction, "'%s' is not an entity and cannot transition state", inv.Object.String())
	}

	if inv.With == nil {
		return nil, failure.New(failure.KindConfiguration, "Accept needs a with clause naming from and to states")
	}
	spec, err := ec.ResolveOperand(ctx, *inv.With)
	if err != nil {
		return nil, err
	}
	specMap, ok := spec.(map[string]any)
	if !ok {
		return nil, failure.New(failure.KindConfiguration, "the Accept with clause must be an object with from and to states")
	}

	field := "status"
	if f, ok := specMap["field"].(string); ok {
		field = f
	}
	from, fromOK := specMap["from"]
	to, toOK := specMap["to"]
	if !fromOK || !toOK {
		return nil, failure.New(failure.KindConfiguration, "the Accept with clause must name both from and to states")
	}

	return state.Accept(entity, field, from, to)
}

// Register registers the action with the registry.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Action{
		Name:         "transition",
		Role:         registry.RoleOwn,
		Verbs:        []string{"Accept"},
		Prepositions: []string{"from"},
		Execute:      execute,
	})
}
