// Package storage provides the repository actions: Retrieve, Store and
// Delete. Reads are available to any execution; writes go through the
// EXPORT role and fan out to the repository's observers.
package storage

import (
	"context"
	"strings"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/repository"
	"github.com/arolang/aro/internal/value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// matcher resolves the where operands once and builds the entity predicate.
func matcher(ctx context.Context, ec registry.ExecutionContext, where []lang.WhereClause) (repository.Predicate, error) {
	if len(where) == 0 {
		return nil, nil
	}
	wanted := make([]any, len(where))
	for i, clause := range where {
		v, err := ec.ResolveOperand(ctx, clause.Operand)
		if err != nil {
			return nil, err
		}
		wanted[i] = v
	}
	return func(item any) bool {
		entity, ok := item.(map[string]any)
		if !ok {
			return false
		}
		for i, clause := range where {
			actual, ok := entity[clause.Field]
			if !ok || !value.Equal(actual, wanted[i]) {
				return false
			}
		}
		return true
	}, nil
}

func describeWhere(where []lang.WhereClause) string {
	parts := make([]string, len(where))
	for i, clause := range where {
		parts[i] = clause.Field + " = " + clause.Operand.String()
	}
	return strings.Join(parts, " and ")
}

// executeRetrieve reads from a repository. With a where clause it binds the
// most recent matching entity and fails in business language when nothing
// matches; without one it binds the full reverse-chronological list.
func executeRetrieve(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	repo := inv.Object.Name
	pred, err := matcher(ctx, ec, inv.Where)
	if err != nil {
		return nil, err
	}
	items := ec.Repository().Retrieve(repo, pred)

	if len(inv.Where) == 0 {
		return items, nil
	}
	if len(items) == 0 {
		return nil, failure.New(failure.KindAction,
			"no entity in '%s' matches %s", repo, describeWhere(inv.Where))
	}
	// Append order: the most recent match is the last entry.
	return items[len(items)-1], nil
}

// executeStore writes the value named in the result position into the
// repository named as the object.
func executeStore(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	v, err := ec.ResolveRef(ctx, inv.Result)
	if err != nil {
		return nil, err
	}
	change, err := ec.Repository().Store(ctx, inv.Object.Name, v)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Stored entity.", "repository", change.Repository, "changeType", string(change.Type), "entityId", change.EntityID)
	return map[string]any{
		"changeType": string(change.Type),
		"entityId":   change.EntityID,
		"repository": change.Repository,
	}, nil
}

// executeDelete removes the entities matching the where clause; without a
// where clause it clears the repository.
func executeDelete(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	repo := inv.Object.Name
	pred, err := matcher(ctx, ec, inv.Where)
	if err != nil {
		return nil, err
	}
	changes, err := ec.Repository().Delete(ctx, repo, pred)
	if err != nil {
		return nil, err
	}
	if len(inv.Where) > 0 && len(changes) == 0 {
		return nil, failure.New(failure.KindAction,
			"no entity in '%s' matches %s", repo, describeWhere(inv.Where))
	}
	ids := make([]any, len(changes))
	for i, change := range changes {
		ids[i] = change.EntityID
	}
	return map[string]any{
		"changeType": string(repository.Deleted),
		"entityIds":  ids,
		"repository": repo,
	}, nil
}

// Register registers the repository actions with the registry.
func (m *Module) Register(r *registry.Registry) error {
	actions := []*registry.Action{
		{
			Name:         "storage.retrieve",
			Role:         registry.RoleOwn,
			Verbs:        []string{"Retrieve"},
			Prepositions: []string{"from"},
			Execute:      executeRetrieve,
		},
		{
			Name:         "storage.store",
			Role:         registry.RoleExport,
			Verbs:        []string{"Store"},
			Prepositions: []string{"to", "into"},
			Execute:      executeStore,
		},
		{
			Name:         "storage.delete",
			Role:         registry.RoleExport,
			Verbs:        []string{"Delete"},
			Prepositions: []string{"from"},
			Execute:      executeDelete,
		},
	}
	for _, action := range actions {
		if err := r.Register(action); err != nil {
			return err
		}
	}
	return nil
}
