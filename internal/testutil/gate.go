package testutil

import (
	"context"

	"github.com/arolang/aro/internal/registry"
)

// GateModule registers the Hold verb: an OWN action that blocks until the
// gate opens, used to observe other executions while one is held mid-flight.
type GateModule struct {
	Release chan struct{}
}

func (m *GateModule) execute(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	select {
	case <-m.Release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if inv.ObjectLiteral != nil {
		return *inv.ObjectLiteral, nil
	}
	return ec.ResolveRef(ctx, inv.Object)
}

// Register registers the action with the registry.
func (m *GateModule) Register(r *registry.Registry) error {
	return r.Register(&registry.Action{
		Name:         "testutil.gate",
		Role:         registry.RoleOwn,
		Verbs:        []string{"Hold"},
		Prepositions: []string{"from"},
		Execute:      m.execute,
	})
}
