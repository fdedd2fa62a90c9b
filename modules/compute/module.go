// Package compute provides the Compute action: it derives a new internal
// value from bound data.
package compute

import (
	"context"

	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// execute reads the base value, applies any where clauses as a filter when
// the base is a list, and merges the with clause on top:
//
//	Compute summary from order with { audited: true }
//
// A map with-clause over a map base is a shallow merge; anything else
// replaces the base outright.
func execute(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	var base any
	if inv.ObjectLiteral != nil {
		base = *inv.ObjectLiteral
	} else {
		v, err := ec.ResolveRef(ctx, inv.Object)
		if err != nil {
			return nil, err
		}
		base = v
	}

	if len(inv.Where) > 0 {
		list, ok := base.([]any)
		if !ok {
			return nil, failure.New(failure.KindAction,
				"a where clause on Compute needs a list, but '%s' is %s", inv.Object.String(), value.ShapeOf(base))
		}
		filtered, err := filter(ctx, ec, list, inv.Where)
		if err != nil {
			return nil, err
		}
		base = filtered
	}

	if inv.With == nil {
		return base, nil
	}
	overlay, err := ec.ResolveOperand(ctx, *inv.With)
	if err != nil {
		return nil, err
	}
	baseMap, baseOK := base.(map[string]any)
	overlayMap, overlayOK := overlay.(map[string]any)
	if !baseOK || !overlayOK {
		return overlay, nil
	}
	merged := value.CloneObject(baseMap)
	for k, v := range overlayMap {
		merged[k] = v
	}
	return merged, nil
}

func filter(ctx context.Context, ec registry.ExecutionContext, list []any, where []lang.WhereClause) ([]any, error) {
	out := make([]any, 0, len(list))
	for _, item := range list {
		entity, ok := item.(map[string]any)
		if !ok {
			continue
		}
		matched := true
		for _, clause := range where {
			want, err := ec.ResolveOperand(ctx, clause.Operand)
			if err != nil {
				return nil, err
			}
			if actual, ok := entity[clause.Field]; !ok || !value.Equal(actual, want) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, item)
		}
	}
	return out, nil
}

// Register registers the action with the registry.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Action{
		Name:         "compute",
		Role:         registry.RoleOwn,
		Verbs:        []string{"Compute"},
		Prepositions: []string{"from"},
		Execute:      execute,
	})
}
