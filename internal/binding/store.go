// Package binding implements the per-execution binding store: an
// append-only name→value map. Names bind exactly once; rebinding is an
// error regardless of how far apart the two statements are.
package binding

import (
	"sync"

	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/value"
)

// Store holds the bindings of exactly one execution. It is never shared
// across executions; the mutex only guards concurrently scheduled statements
// of the same execution.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// New creates an empty binding store.
func New() *Store {
	return &Store{values: make(map[string]any)}
}

// Bind associates a name with a value. Binding an existing name fails with
// AlreadyBound; bindings are never mutated afterwards.
func (s *Store) Bind(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[name]; exists {
		return failure.New(failure.KindAlreadyBound, "name '%s' is already bound in this execution", name)
	}
	s.values[name] = v
	return nil
}

// Get returns the value bound to a name, if any. The value may be an
// unresolved *Future for in-flight I/O.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Require returns the value bound to a name or fails with UnboundName.
func (s *Store) Require(name string) (any, error) {
	v, ok := s.Get(name)
	if !ok {
		return nil, failure.New(failure.KindUnboundName, "name '%s' is not bound in this execution", name)
	}
	return v, nil
}

// Resolve navigates a reference's qualifier path into its bound value.
// A missing path segment fails with UnresolvedQualifier.
func Resolve(base any, ref lang.Reference) (any, error) {
	v, err := value.Navigate(base, ref.Path)
	if err != nil {
		return nil, failure.New(failure.KindUnresolvedQualifier, "%s", err.Error())
	}
	return v, nil
}
