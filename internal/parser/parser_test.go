package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/value"
)

func TestParseUnit_FullFeatureSet(t *testing.T) {
	src := `
// order confirmation
feature-set "POST /orders/confirm" for "order-processing" {
	Extract order-id from event.payload.orderId
	Retrieve order from order-repository where id = order-id
	Accept confirmed-order from order with { field: "status", from: "placed", to: "confirmed" }
	Store confirmed-order to order-repository
	Return success to caller with confirmed-order
}
`
	sets, err := ParseUnit("orders.aro", src)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	fs := sets[0]
	assert.Equal(t, "POST /orders/confirm", fs.Name)
	assert.Equal(t, "order-processing", fs.Activity)
	assert.Nil(t, fs.Guard)
	require.Len(t, fs.Statements, 5)

	first := fs.Statements[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "Extract", first.Verb)
	assert.Equal(t, "order-id", first.Result.Name)
	assert.Equal(t, "from", first.Preposition)
	assert.Equal(t, "event", first.Object.Name)
	assert.Equal(t, value.Path{"payload", "orderId"}, first.Object.Path)

	second := fs.Statements[1]
	require.Len(t, second.Where, 1)
	assert.Equal(t, "id", second.Where[0].Field)
	require.True(t, second.Where[0].Operand.IsRef())
	assert.Equal(t, "order-id", second.Where[0].Operand.Ref.Name)

	third := fs.Statements[2]
	require.NotNil(t, third.With)
	spec, ok := third.With.Literal.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "placed", spec["from"])
	assert.Equal(t, "confirmed", spec["to"])

	last := fs.Statements[4]
	assert.Equal(t, "Return", last.Verb)
	assert.Equal(t, "success", last.Result.Name)
	require.NotNil(t, last.With)
	assert.Equal(t, "confirmed-order", last.With.Ref.Name)
}

func TestParseUnit_GuardAndLiterals(t *testing.T) {
	src := `
feature-set "order-repository Observer" for "order-processing" when status = "confirmed", "shipped" and priority = 1 {
	Show change of event.payload
	Compute summary from event.payload with { audited: true, tags: ["a", "b"], weight: 0.5 }
}
`
	sets, err := ParseUnit("observer.aro", src)
	require.NoError(t, err)
	require.Len(t, sets, 1)

	fs := sets[0]
	repo, isObserver := lang.ObservedRepository(fs.Name)
	assert.True(t, isObserver)
	assert.Equal(t, "order-repository", repo)

	require.NotNil(t, fs.Guard)
	require.Len(t, fs.Guard.Clauses, 2)
	assert.Equal(t, "status", fs.Guard.Clauses[0].Field)
	assert.Equal(t, []any{"confirmed", "shipped"}, fs.Guard.Clauses[0].Values)
	assert.Equal(t, []any{float64(1)}, fs.Guard.Clauses[1].Values)

	withLit := fs.Statements[1].With.Literal.(map[string]any)
	assert.Equal(t, true, withLit["audited"])
	assert.Equal(t, []any{"a", "b"}, withLit["tags"])
	assert.Equal(t, 0.5, withLit["weight"])
}

func TestParseUnit_QuotedObject(t *testing.T) {
	src := `
feature-set "Start-Up" {
	Emit ready to "system-ready" with { ok: true }
}
`
	sets, err := ParseUnit("startup.aro", src)
	require.NoError(t, err)
	stmt := sets[0].Statements[0]
	require.NotNil(t, stmt.ObjectLiteral)
	assert.Equal(t, "system-ready", *stmt.ObjectLiteral)
}

func TestParseUnit_NumericQualifierPath(t *testing.T) {
	src := `
feature-set "Start-Up" {
	Compute latest from order-repository.0.status
}
`
	sets, err := ParseUnit("latest.aro", src)
	require.NoError(t, err)
	obj := sets[0].Statements[0].Object
	assert.Equal(t, "order-repository", obj.Name)
	assert.Equal(t, value.Path{"0", "status"}, obj.Path)
}

func TestParseUnit_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name:     "missing preposition",
			src:      "feature-set \"Start-Up\" {\n\tExtract order event.payload\n}",
			expected: "a preposition",
		},
		{
			name:     "unterminated feature set",
			src:      "feature-set \"Start-Up\" {\n\tShow x of event\n",
			expected: "'}' closing feature set",
		},
		{
			name:     "statement outside feature set",
			src:      "Show x of event\n",
			expected: "'feature-set'",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseUnit("bad.aro", tc.src)
			require.Error(t, err)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Contains(t, parseErr.Expected, tc.expected)
			assert.Equal(t, "bad.aro", parseErr.Pos.File)
			assert.NotZero(t, parseErr.Pos.Line)
		})
	}
}

func TestBuildProgram_StructuralErrors(t *testing.T) {
	src := `
feature-set "GET /orders" {
	Show orders of order-repository
}
feature-set "GET /orders" {
	Show orders of order-repository
}
`
	sets, err := ParseUnit("dup.aro", src)
	require.NoError(t, err)

	_, err = BuildProgram(sets)
	require.Error(t, err)
	var structural *StructuralError
	require.True(t, errors.As(err, &structural))

	// Both the duplicate name and the missing start point are reported in
	// one pass.
	require.Len(t, structural.Problems, 2)
	assert.Contains(t, structural.Problems[0], `"GET /orders"`)
	assert.Contains(t, structural.Problems[1], lang.StartUpName)
}

func TestBuildProgram_SingleStartUpEnforced(t *testing.T) {
	src := `
feature-set "Start-Up" {
	Show ready of event
}
feature-set "Start-Up" {
	Show ready of event
}
feature-set "Shut-Down" {
	Show done of event
}
feature-set "Shut-Down" {
	Show done of event
}
`
	sets, err := ParseUnit("lifecycle.aro", src)
	require.NoError(t, err)

	_, err = BuildProgram(sets)
	var structural *StructuralError
	require.True(t, errors.As(err, &structural))

	var startProblems, shutdownProblems int
	for _, problem := range structural.Problems {
		switch {
		case containsAll(problem, "Start-Up", "exactly one"):
			startProblems++
		case containsAll(problem, "Shut-Down", "at most one"):
			shutdownProblems++
		}
	}
	assert.Equal(t, 2, startProblems)
	assert.Equal(t, 2, shutdownProblems)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
