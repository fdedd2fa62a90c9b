// Package extract provides the Extract action: it brings a value from the
// triggering event into the execution's binding store.
package extract

import (
	"context"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// execute resolves the object reference, typically a qualifier path into the
// pre-bound event (event.payload.orderId). A quoted object is taken as a
// constant.
func execute(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	if inv.ObjectLiteral != nil {
		return *inv.ObjectLiteral, nil
	}
	v, err := ec.ResolveRef(ctx, inv.Object)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Extracted value.", "name", inv.Result.Name, "from", inv.Object.String())
	return v, nil
}

// Register registers the action with the registry.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Action{
		Name:         "extract",
		Role:         registry.RoleRequest,
		Verbs:        []string{"Extract"},
		Prepositions: []string{"from"},
		Execute:      execute,
	})
}
