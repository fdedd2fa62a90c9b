// Package testutil provides the integration harness: it compiles program
// source into a running runtime with the core action set and records every
// exported effect.
package testutil

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/event"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/parser"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/runtime"
	"github.com/arolang/aro/internal/scheduler"
	"github.com/arolang/aro/modules/compute"
	"github.com/arolang/aro/modules/display"
	"github.com/arolang/aro/modules/events"
	"github.com/arolang/aro/modules/extract"
	"github.com/arolang/aro/modules/respond"
	"github.com/arolang/aro/modules/storage"
	"github.com/arolang/aro/modules/transition"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// RecordedEffect is one exported effect with the feature set it came from.
type RecordedEffect struct {
	FeatureSet string
	Statement  *lang.Statement
	Value      any
}

// EffectRecorder collects effects across all executions of a harness run.
type EffectRecorder struct {
	mu      sync.Mutex
	effects []RecordedEffect
}

// Sink adapts the recorder to the runtime's effect-sink hook.
func (r *EffectRecorder) Sink(featureSet string, effect scheduler.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, RecordedEffect{
		FeatureSet: featureSet,
		Statement:  effect.Statement,
		Value:      effect.Value,
	})
}

// Effects returns a snapshot of everything recorded so far.
func (r *EffectRecorder) Effects() []RecordedEffect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedEffect, len(r.effects))
	copy(out, r.effects)
	return out
}

// ByFeatureSet returns the recorded effects of one feature set, in order.
func (r *EffectRecorder) ByFeatureSet(name string) []RecordedEffect {
	var out []RecordedEffect
	for _, e := range r.Effects() {
		if e.FeatureSet == name {
			out = append(out, e)
		}
	}
	return out
}

// Harness is one compiled program running in-process.
type Harness struct {
	Runtime  *runtime.Runtime
	Recorder *EffectRecorder
	Display  *SafeBuffer
	Logs     *SafeBuffer
}

// Compile parses the source, registers the core action set plus any extra
// modules, and builds the runtime. It does not run Start-Up; tests that
// need the full lifecycle call Start themselves.
func Compile(t *testing.T, source string, extra ...registry.Module) *Harness {
	t.Helper()
	return CompileOptions(t, source, nil, extra...)
}

// CompileOptions is Compile with explicit runtime options, for tests that
// pin the worker count or the timeouts.
func CompileOptions(t *testing.T, source string, opts []runtime.Option, extra ...registry.Module) *Harness {
	t.Helper()

	sets, err := parser.ParseUnit("test.aro", source)
	require.NoError(t, err)
	program, err := parser.BuildProgram(sets)
	require.NoError(t, err)

	displayOut := &SafeBuffer{}
	reg := registry.New()
	core := []registry.Module{
		&extract.Module{},
		&compute.Module{},
		&storage.Module{},
		&transition.Module{},
		&events.Module{},
		&respond.Module{},
		&display.Module{Output: displayOut},
	}
	for _, mod := range append(core, extra...) {
		require.NoError(t, mod.Register(reg))
	}

	recorder := &EffectRecorder{}
	rtOpts := append([]runtime.Option{runtime.WithEffectSink(recorder.Sink)}, opts...)
	rt, err := runtime.New(program, reg, rtOpts...)
	require.NoError(t, err)

	return &Harness{Runtime: rt, Recorder: recorder, Display: displayOut, Logs: &SafeBuffer{}}
}

// Start runs the pool and the Start-Up execution, wiring shutdown into the
// test cleanup.
func (h *Harness) Start(t *testing.T) context.Context {
	t.Helper()
	ctx := ctxlog.WithLogger(context.Background(), NewLogger(h.Logs))
	require.NoError(t, h.Runtime.Start(ctx))
	t.Cleanup(func() {
		_ = h.Runtime.Shutdown(context.Background(), false)
	})
	return ctx
}

// Trigger delivers an event and returns the boundary result.
func (h *Harness) Trigger(ctx context.Context, name string, payload map[string]any) scheduler.Result {
	return h.Runtime.Trigger(ctx, event.New(name, payload))
}
