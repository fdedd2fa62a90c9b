package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/lang"
)

func noop(context.Context, ExecutionContext, Invocation) (any, error) {
	return nil, nil
}

func TestRegistry_DuplicateVerbRejected(t *testing.T) {
	r := New()
	original := &Action{Name: "storage", Role: RoleOwn, Verbs: []string{"Retrieve"}, Prepositions: []string{"from"}, Execute: noop}
	require.NoError(t, r.Register(original))

	err := r.Register(&Action{Name: "impostor", Role: RoleOwn, Verbs: []string{"Retrieve"}, Prepositions: []string{"from"}, Execute: noop})
	require.Error(t, err)
	assert.Equal(t, failure.KindConfiguration, failure.KindOf(err))
	assert.Contains(t, err.Error(), "already registered by action 'storage'")

	// The original registration stays authoritative.
	resolved, err := r.Resolve(&lang.Statement{Verb: "Retrieve", Preposition: "from"})
	require.NoError(t, err)
	assert.Same(t, original, resolved)
}

func TestRegistry_PartialDuplicateRegistersNothing(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&Action{Name: "a", Role: RoleOwn, Verbs: []string{"Compute"}, Prepositions: []string{"from"}, Execute: noop}))

	err := r.Register(&Action{Name: "b", Role: RoleOwn, Verbs: []string{"Derive", "Compute"}, Prepositions: []string{"from"}, Execute: noop})
	require.Error(t, err)

	// The rejected action must not leave its other verbs behind.
	_, err = r.Resolve(&lang.Statement{Verb: "Derive", Preposition: "from"})
	require.Error(t, err)
	assert.Equal(t, failure.KindUnknownVerb, failure.KindOf(err))
}

func TestRegistry_Resolve(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&Action{Name: "storage", Role: RoleExport, Verbs: []string{"Store"}, Prepositions: []string{"to", "into"}, Execute: noop}))

	_, err := r.Resolve(&lang.Statement{Verb: "Teleport", Preposition: "to"})
	require.Error(t, err)
	assert.Equal(t, failure.KindUnknownVerb, failure.KindOf(err))

	_, err = r.Resolve(&lang.Statement{Verb: "Store", Preposition: "of"})
	require.Error(t, err)
	assert.Equal(t, failure.KindInvalidPreposition, failure.KindOf(err))

	action, err := r.Resolve(&lang.Statement{Verb: "Store", Preposition: "into"})
	require.NoError(t, err)
	assert.Equal(t, RoleExport, action.Role)
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "REQUEST", RoleRequest.String())
	assert.Equal(t, "OWN", RoleOwn.String())
	assert.Equal(t, "RESPONSE", RoleResponse.String())
	assert.Equal(t, "EXPORT", RoleExport.String())
}
