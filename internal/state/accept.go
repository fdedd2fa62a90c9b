// Package state implements the single state-transition primitive: Accept, a
// validate-then-set on one entity field. There are no entry/exit actions and
// no hierarchy; persistence and notification are explicit statements at the
// call site.
package state

import (
	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/value"
)

// Accept checks that the entity's field currently holds the expected "from"
// value and, if so, returns a copy of the entity with the field set to "to".
// On a mismatch the entity is unchanged and StateMismatch reports both the
// expected and the actual value.
func Accept(entity map[string]any, field string, from, to any) (map[string]any, error) {
	actual, ok := entity[field]
	if !ok {
		return nil, failure.New(failure.KindStateMismatch,
			"field '%s' expected %v, but the entity has no such field", field, from)
	}
	if !value.Equal(actual, from) {
		return nil, failure.New(failure.KindStateMismatch,
			"field '%s' expected %v, actual %v", field, from, actual)
	}
	updated := value.CloneObject(entity)
	updated[field] = to
	return updated, nil
}
