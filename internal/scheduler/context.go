package scheduler

import (
	"context"
	"strconv"
	"time"

	"github.com/arolang/aro/internal/binding"
	"github.com/arolang/aro/internal/event"
	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/repository"
)

// invocationContext is the per-statement registry.ExecutionContext. It
// enforces the data-flow discipline: only REQUEST/OWN actions bind, only
// EXPORT actions mutate repositories or emit events.
type invocationContext struct {
	exec      *Execution
	stmt      *lang.Statement
	role      registry.Role
	selfBound bool
}

func (ic *invocationContext) Activity() string {
	return ic.exec.fs.Activity
}

func (ic *invocationContext) Trigger() event.Event {
	return ic.exec.trigger
}

func (ic *invocationContext) Get(name string) (any, bool) {
	return ic.exec.bindings.Get(name)
}

func (ic *invocationContext) Require(ctx context.Context, name string) (any, error) {
	v, err := ic.exec.bindings.Require(name)
	if err != nil {
		return nil, err
	}
	return binding.Settle(ctx, v)
}

func (ic *invocationContext) ResolveRef(ctx context.Context, ref lang.Reference) (any, error) {
	if raw, ok := ic.exec.bindings.Get(ref.Name); ok {
		v, err := binding.Settle(ctx, raw)
		if err != nil {
			return nil, err
		}
		return binding.Resolve(v, ref)
	}

	// Unbound names may address a repository; index 0 then means the most
	// recently appended element.
	repos := ic.exec.cfg.Repos
	scope := ic.Activity()
	if repos != nil && repos.Len(ref.Name, scope) > 0 {
		if len(ref.Path) == 0 {
			return repos.Retrieve(ref.Name, scope, nil), nil
		}
		index, err := strconv.Atoi(ref.Path[0])
		if err != nil {
			return nil, failure.New(failure.KindUnresolvedQualifier,
				"qualifier '%s' on repository '%s' must start with a numeric position", ref.Path.String(), ref.Name)
		}
		entry, ok := repos.At(ref.Name, scope, index)
		if !ok {
			return nil, failure.New(failure.KindUnresolvedQualifier,
				"repository '%s' has no element at position %d", ref.Name, index)
		}
		return binding.Resolve(entry, lang.Reference{Name: ref.Name, Path: ref.Path[1:]})
	}

	return nil, failure.New(failure.KindUnboundName, "name '%s' is not bound in this execution", ref.Name)
}

func (ic *invocationContext) ResolveOperand(ctx context.Context, op lang.Operand) (any, error) {
	if op.IsRef() {
		return ic.ResolveRef(ctx, *op.Ref)
	}
	return op.Literal, nil
}

func (ic *invocationContext) Bind(name string, v any) error {
	if ic.role != registry.RoleRequest && ic.role != registry.RoleOwn {
		return failure.At(failure.KindConfiguration, ic.stmt,
			"%s actions may not bind names; binding is reserved for REQUEST and OWN roles", ic.role)
	}
	if err := ic.exec.bindings.Bind(name, v); err != nil {
		return err
	}
	if name == ic.stmt.Result.Name {
		ic.selfBound = true
	}
	return nil
}

func (ic *invocationContext) Repository() registry.RepositoryAccess {
	return &scopedRepo{ic: ic}
}

func (ic *invocationContext) Emit(ctx context.Context, ev event.Event) (*event.Wait, error) {
	if ic.role != registry.RoleExport {
		return nil, failure.At(failure.KindConfiguration, ic.stmt,
			"%s actions may not emit events; emitting is reserved for the EXPORT role", ic.role)
	}
	wait := ic.exec.cfg.Bus.Dispatch(ctx, ev)
	ic.exec.addGate(ic.stmt.Index, wait)
	return wait, nil
}

func (ic *invocationContext) RequestTimeout() time.Duration {
	return ic.exec.cfg.RequestTimeout
}

// scopedRepo exposes the shared repository store under the execution's
// business-activity scope, with mutations restricted to EXPORT actions.
type scopedRepo struct {
	ic *invocationContext
}

func (r *scopedRepo) Retrieve(repo string, pred repository.Predicate) []any {
	return r.ic.exec.cfg.Repos.Retrieve(repo, r.ic.Activity(), pred)
}

func (r *scopedRepo) At(repo string, index int) (any, bool) {
	return r.ic.exec.cfg.Repos.At(repo, r.ic.Activity(), index)
}

func (r *scopedRepo) Store(ctx context.Context, repo string, v any) (repository.Change, error) {
	if r.ic.role != registry.RoleExport {
		return repository.Change{}, failure.At(failure.KindConfiguration, r.ic.stmt,
			"%s actions may not write repositories; writes are reserved for the EXPORT role", r.ic.role)
	}
	return r.ic.exec.cfg.Repos.Store(ctx, repo, r.ic.Activity(), v), nil
}

func (r *scopedRepo) Delete(ctx context.Context, repo string, pred repository.Predicate) ([]repository.Change, error) {
	if r.ic.role != registry.RoleExport {
		return nil, failure.At(failure.KindConfiguration, r.ic.stmt,
			"%s actions may not delete from repositories; writes are reserved for the EXPORT role", r.ic.role)
	}
	return r.ic.exec.cfg.Repos.Delete(ctx, repo, r.ic.Activity(), pred), nil
}
