package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arolang/aro/internal/event"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/testutil"
	"github.com/arolang/aro/modules/events"
)

func action(t *testing.T) *registry.Action {
	t.Helper()
	reg := registry.New()
	require.NoError(t, (&events.Module{}).Register(reg))
	a, err := reg.Resolve(&lang.Statement{Verb: "Emit", Preposition: "to"})
	require.NoError(t, err)
	return a
}

func TestEmit_PublishesWithClauseAsPayload(t *testing.T) {
	a := action(t)
	ec := testutil.NewStubContext()
	ec.Event = event.New("POST /orders/confirm", nil)
	ec.Bindings["order"] = map[string]any{"id": "A-1", "status": "confirmed"}

	name := "order-confirmed"
	out, err := a.Execute(context.Background(), ec, registry.Invocation{
		Result:        lang.Reference{Name: "confirmation"},
		ObjectLiteral: &name,
		With:          &lang.Operand{Ref: &lang.Reference{Name: "order"}},
	})
	require.NoError(t, err)

	require.Len(t, ec.Emitted, 1)
	emitted := ec.Emitted[0]
	assert.Equal(t, "order-confirmed", emitted.Name)
	assert.Equal(t, map[string]any{"id": "A-1", "status": "confirmed"}, emitted.Payload)
	assert.Equal(t, ec.Event.CorrelationID, emitted.CorrelationID, "a cascade keeps the trigger's correlation id")

	summary := out.(map[string]any)
	assert.Equal(t, "order-confirmed", summary["event"])
}

func TestEmit_ScalarPayloadIsWrapped(t *testing.T) {
	a := action(t)
	ec := testutil.NewStubContext()
	ec.Event = event.New("Start-Up", nil)

	name := "audit"
	_, err := a.Execute(context.Background(), ec, registry.Invocation{
		Result:        lang.Reference{Name: "note"},
		ObjectLiteral: &name,
		With:          &lang.Operand{Literal: "booted"},
	})
	require.NoError(t, err)
	require.Len(t, ec.Emitted, 1)
	assert.Equal(t, map[string]any{"value": "booted"}, ec.Emitted[0].Payload)
}

func TestEmit_NoWithClauseSendsEmptyPayload(t *testing.T) {
	a := action(t)
	ec := testutil.NewStubContext()
	ec.Event = event.New("Start-Up", nil)

	_, err := a.Execute(context.Background(), ec, registry.Invocation{
		Result: lang.Reference{Name: "ping"},
		Object: lang.Reference{Name: "heartbeat"},
	})
	require.NoError(t, err)
	require.Len(t, ec.Emitted, 1)
	assert.Equal(t, "heartbeat", ec.Emitted[0].Name)
	assert.Empty(t, ec.Emitted[0].Payload)
}
