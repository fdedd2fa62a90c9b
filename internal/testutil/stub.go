package testutil

import (
	"context"
	"time"

	"github.com/arolang/aro/internal/binding"
	"github.com/arolang/aro/internal/event"
	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/repository"
)

// StubContext is a registry.ExecutionContext for action-level tests. It
// resolves against a plain bindings map and an optional repository store,
// and records emitted events. Unlike the real context it applies no role
// gating; role discipline is covered by the scheduler's own tests.
type StubContext struct {
	ActivityName string
	Event        event.Event
	Bindings     map[string]any
	Repos        *repository.Store
	Emitted      []event.Event
	Timeout      time.Duration
}

// NewStubContext builds a stub with an empty binding map and store.
func NewStubContext() *StubContext {
	return &StubContext{
		Bindings: make(map[string]any),
		Repos:    repository.New(),
		Timeout:  time.Second,
	}
}

func (s *StubContext) Activity() string {
	return s.ActivityName
}

func (s *StubContext) Trigger() event.Event {
	return s.Event
}

func (s *StubContext) Get(name string) (any, bool) {
	v, ok := s.Bindings[name]
	return v, ok
}

func (s *StubContext) Require(ctx context.Context, name string) (any, error) {
	v, ok := s.Bindings[name]
	if !ok {
		return nil, failure.New(failure.KindUnboundName, "name '%s' is not bound in this execution", name)
	}
	return binding.Settle(ctx, v)
}

func (s *StubContext) ResolveRef(ctx context.Context, ref lang.Reference) (any, error) {
	base, err := s.Require(ctx, ref.Name)
	if err != nil {
		return nil, err
	}
	return binding.Resolve(base, ref)
}

func (s *StubContext) ResolveOperand(ctx context.Context, op lang.Operand) (any, error) {
	if op.IsRef() {
		return s.ResolveRef(ctx, *op.Ref)
	}
	return op.Literal, nil
}

func (s *StubContext) Bind(name string, v any) error {
	if _, exists := s.Bindings[name]; exists {
		return failure.New(failure.KindAlreadyBound, "name '%s' is already bound in this execution", name)
	}
	s.Bindings[name] = v
	return nil
}

func (s *StubContext) Repository() registry.RepositoryAccess {
	return &stubRepo{s: s}
}

func (s *StubContext) Emit(ctx context.Context, ev event.Event) (*event.Wait, error) {
	s.Emitted = append(s.Emitted, ev)
	return nil, nil
}

func (s *StubContext) RequestTimeout() time.Duration {
	return s.Timeout
}

type stubRepo struct {
	s *StubContext
}

func (r *stubRepo) Retrieve(repo string, pred repository.Predicate) []any {
	return r.s.Repos.Retrieve(repo, r.s.ActivityName, pred)
}

func (r *stubRepo) At(repo string, index int) (any, bool) {
	return r.s.Repos.At(repo, r.s.ActivityName, index)
}

func (r *stubRepo) Store(ctx context.Context, repo string, v any) (repository.Change, error) {
	return r.s.Repos.Store(ctx, repo, r.s.ActivityName, v), nil
}

func (r *stubRepo) Delete(ctx context.Context, repo string, pred repository.Predicate) ([]repository.Change, error) {
	return r.s.Repos.Delete(ctx, repo, r.s.ActivityName, pred), nil
}
