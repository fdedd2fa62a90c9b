// Package respond provides the Return action, the terminal RESPONSE of an
// execution.
package respond

import (
	"context"

	"github.com/arolang/aro/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// execute builds the terminal value:
//
//	Return success to caller with confirmed-order
//
// The with clause is the response body; without one the object reference is
// returned directly. The result position is a status tag surfaced alongside
// the value.
func execute(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	var body any
	switch {
	case inv.With != nil:
		v, err := ec.ResolveOperand(ctx, *inv.With)
		if err != nil {
			return nil, err
		}
		body = v
	case inv.ObjectLiteral != nil:
		body = *inv.ObjectLiteral
	default:
		v, err := ec.ResolveRef(ctx, inv.Object)
		if err != nil {
			return nil, err
		}
		body = v
	}
	return map[string]any{
		"status": inv.Result.Name,
		"value":  body,
	}, nil
}

// Register registers the action with the registry.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Action{
		Name:         "respond",
		Role:         registry.RoleResponse,
		Verbs:        []string{"Return"},
		Prepositions: []string{"to", "with"},
		Execute:      execute,
	})
}
