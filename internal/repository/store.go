// Package repository implements the process-lifetime shared store:
// business-activity-scoped, append-only ordered lists of identity-keyed
// values, with change notification for registered observers.
package repository

import (
	"context"
	"sync"
	"time"

	"github.com/arolang/aro/internal/value"
)

// ChangeType classifies a repository mutation for observers.
type ChangeType string

const (
	Created ChangeType = "created"
	Updated ChangeType = "updated"
	Deleted ChangeType = "deleted"
)

// Change describes one mutation. Observers receive every field.
type Change struct {
	Repository string
	Scope      string
	Type       ChangeType
	EntityID   string
	OldValue   any
	NewValue   any
	Timestamp  time.Time
}

// Predicate filters repository entries. A nil predicate matches everything.
type Predicate func(v any) bool

// Notifier receives each change after it is applied. The store calls it
// outside its locks, so observers may touch the same repository again.
type Notifier func(ctx context.Context, change Change)

type scopeKey struct {
	repo  string
	scope string
}

// list is one (repository, scope) entry list. Writes serialize on its
// mutex; reads proceed concurrently.
type list struct {
	mu    sync.RWMutex
	items []any
}

// Store is the shared repository store. Mutations are serialized per
// (repository, scope); distinct scopes never contend.
type Store struct {
	mu     sync.RWMutex
	lists  map[scopeKey]*list
	notify Notifier
}

// New creates an empty store.
func New() *Store {
	return &Store{lists: make(map[scopeKey]*list)}
}

// SetNotifier installs the change-notification hook. Called once at wiring
// time, before any execution runs.
func (s *Store) SetNotifier(n Notifier) {
	s.notify = n
}

func (s *Store) list(repo, scope string, create bool) *list {
	key := scopeKey{repo: repo, scope: scope}
	s.mu.RLock()
	l, ok := s.lists[key]
	s.mu.RUnlock()
	if ok || !create {
		return l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.lists[key]; ok {
		return l
	}
	l = &list{}
	s.lists[key] = l
	return l
}

// Store appends a value to the scoped list. A value whose identity key
// matches an existing entry classifies as "updated" (the old entry is
// superseded and the new value becomes the most recent); otherwise
// "created". Observers are notified after the mutation is applied.
func (s *Store) Store(ctx context.Context, repo, scope string, v any) Change {
	l := s.list(repo, scope, true)

	change := Change{
		Repository: repo,
		Scope:      scope,
		Type:       Created,
		NewValue:   v,
		Timestamp:  time.Now().UTC(),
	}
	if id, ok := value.IdentityKey(v); ok {
		change.EntityID = id
	}

	l.mu.Lock()
	if change.EntityID != "" {
		for i, existing := range l.items {
			if id, ok := value.IdentityKey(existing); ok && id == change.EntityID {
				change.Type = Updated
				change.OldValue = existing
				l.items = append(l.items[:i], l.items[i+1:]...)
				break
			}
		}
	}
	l.items = append(l.items, v)
	l.mu.Unlock()

	if s.notify != nil {
		s.notify(ctx, change)
	}
	return change
}

// Delete removes every entry matching the predicate, producing one
// "deleted" change per removed entity.
func (s *Store) Delete(ctx context.Context, repo, scope string, pred Predicate) []Change {
	l := s.list(repo, scope, false)
	if l == nil {
		return nil
	}

	var changes []Change
	l.mu.Lock()
	kept := l.items[:0:0]
	for _, existing := range l.items {
		if pred == nil || pred(existing) {
			change := Change{
				Repository: repo,
				Scope:      scope,
				Type:       Deleted,
				OldValue:   existing,
				Timestamp:  time.Now().UTC(),
			}
			if id, ok := value.IdentityKey(existing); ok {
				change.EntityID = id
			}
			changes = append(changes, change)
			continue
		}
		kept = append(kept, existing)
	}
	l.items = kept
	l.mu.Unlock()

	if s.notify != nil {
		for _, change := range changes {
			s.notify(ctx, change)
		}
	}
	return changes
}

// Retrieve returns every entry matching the predicate, in append order. An
// empty or nonexistent repository yields an empty result, never an error.
func (s *Store) Retrieve(repo, scope string, pred Predicate) []any {
	l := s.list(repo, scope, false)
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]any, 0, len(l.items))
	for _, v := range l.items {
		if pred == nil || pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// At returns the entry at a reverse-chronological index: 0 is the most
// recently appended element.
func (s *Store) At(repo, scope string, index int) (any, bool) {
	l := s.list(repo, scope, false)
	if l == nil {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.items) {
		return nil, false
	}
	return l.items[len(l.items)-1-index], true
}

// Len returns the number of entries in the scoped list.
func (s *Store) Len(repo, scope string) int {
	l := s.list(repo, scope, false)
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
