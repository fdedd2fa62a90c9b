package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arolang/aro/internal/binding"
	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/event"
	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/repository"
	"github.com/google/uuid"
)

// Config carries the shared collaborators an execution runs against.
type Config struct {
	Registry       *registry.Registry
	Repos          *repository.Store
	Bus            *event.Bus
	Pool           *Pool
	RequestTimeout time.Duration
}

// Effect is one entry in the ordered log of externally visible effects.
type Effect struct {
	Statement *lang.Statement
	Value     any
}

// Result is what an execution hands back to its trigger boundary: the
// terminal RESPONSE value (if one ran), the ordered EXPORT log, and at most
// one structured failure.
type Result struct {
	Responded bool
	Response  any
	Effects   []Effect
	Err       error
}

// gate blocks statements after an Emit until the emitted event's direct
// handlers complete.
type gate struct {
	index int
	wait  *event.Wait
}

// Execution runs one feature set against a fresh binding store.
type Execution struct {
	id      string
	fs      *lang.FeatureSet
	trigger event.Event
	cfg     Config

	bindings *binding.Store
	nodes    []*node

	wg        sync.WaitGroup
	mu        sync.Mutex
	gates     []gate
	effects   []Effect
	response  any
	responded atomic.Bool
	aborted   atomic.Bool
	failErr   error
}

// Run executes the feature set to completion and returns its result. The
// caller decides whether to run synchronously (lifecycle, Emit handlers)
// or on its own goroutine (independent triggers).
func Run(ctx context.Context, cfg Config, fs *lang.FeatureSet, trigger event.Event) Result {
	e := &Execution{
		id:       uuid.NewString(),
		fs:       fs,
		trigger:  trigger,
		cfg:      cfg,
		bindings: binding.New(),
	}
	// The triggering event is pre-bound so statements can qualify into it
	// (event.name, event.payload.*) like any other bound value.
	_ = e.bindings.Bind("event", map[string]any{
		"name":          trigger.Name,
		"payload":       trigger.Payload,
		"correlationId": trigger.CorrelationID,
	})
	logger := ctxlog.FromContext(ctx).With("featureSet", fs.Name, "executionID", e.id, "correlationID", trigger.CorrelationID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("▶️ Starting execution.", "statements", len(fs.Statements))

	nodes, err := buildPlan(fs, cfg.Registry)
	if err != nil {
		logger.Error("Statement resolution failed.", "error", err)
		return Result{Err: err}
	}
	e.nodes = nodes

	e.wg.Add(len(nodes))
	for _, n := range nodes {
		if n.depCount.Load() == 0 {
			e.submit(ctx, n)
		}
	}
	e.wg.Wait()

	e.mu.Lock()
	result := Result{
		Responded: e.responded.Load(),
		Response:  e.response,
		Effects:   e.effects,
		Err:       e.failErr,
	}
	e.mu.Unlock()

	if result.Err != nil {
		logger.Debug("Execution failed.", "error", result.Err)
	} else {
		logger.Debug("✅ Execution finished.", "responded", result.Responded, "effects", len(result.Effects))
	}
	return result
}

func (e *Execution) submit(ctx context.Context, n *node) {
	e.cfg.Pool.Submit(func() {
		e.runNode(ctx, n)
	})
}

func (e *Execution) runNode(ctx context.Context, n *node) {
	logger := ctxlog.FromContext(ctx).With("statement", n.stmt.Describe())

	if e.aborted.Load() || e.responded.Load() || ctx.Err() != nil {
		e.skip(ctx, n)
		return
	}

	n.setState(stateRunning)

	if err := e.awaitGates(ctx, n.stmt.Index); err != nil {
		e.fail(ctx, n, failure.Wrap(n.stmt, err))
		return
	}

	logger.Debug("Running statement.", "verb", n.stmt.Verb, "role", n.action.Role.String())
	ic := &invocationContext{exec: e, stmt: n.stmt, role: n.action.Role}
	out, err := n.action.Execute(ctx, ic, registry.Invocation{
		Result:        n.stmt.Result,
		Object:        n.stmt.Object,
		ObjectLiteral: n.stmt.ObjectLiteral,
		Preposition:   n.stmt.Preposition,
		Where:         n.stmt.Where,
		With:          n.stmt.With,
	})
	if err != nil {
		e.fail(ctx, n, failure.Wrap(n.stmt, err))
		return
	}

	switch n.action.Role {
	case registry.RoleRequest, registry.RoleOwn:
		if !ic.selfBound {
			if err := e.bindings.Bind(n.stmt.Result.Name, out); err != nil {
				e.fail(ctx, n, failure.Wrap(n.stmt, err))
				return
			}
		}
	case registry.RoleExport:
		e.mu.Lock()
		e.effects = append(e.effects, Effect{Statement: n.stmt, Value: out})
		e.mu.Unlock()
	case registry.RoleResponse:
		e.mu.Lock()
		e.response = out
		e.mu.Unlock()
		e.responded.Store(true)
	}

	e.complete(ctx, n)
}

// complete marks a node done and unlocks its dependents. After a
// successful RESPONSE the remaining statements are skipped instead.
func (e *Execution) complete(ctx context.Context, n *node) {
	fired := false
	n.skipOnce.Do(func() {
		fired = true
		n.setState(stateDone)
		e.wg.Done()
	})
	if !fired {
		// A concurrent abort already accounted for this node.
		return
	}
	if e.responded.Load() || e.aborted.Load() {
		e.skipDependents(ctx, n)
		return
	}
	for _, dependent := range n.dependents {
		if dependent.depCount.Add(-1) == 0 {
			e.submit(ctx, dependent)
		}
	}
}

// fail records the execution's single structured failure and aborts the
// remaining statements. Only the first failure is surfaced.
func (e *Execution) fail(ctx context.Context, n *node, err error) {
	logger := ctxlog.FromContext(ctx)
	e.mu.Lock()
	if e.failErr == nil {
		e.failErr = err
	}
	e.mu.Unlock()
	e.aborted.Store(true)
	logger.Warn("Statement failed, aborting remaining statements.", "statement", n.stmt.Describe(), "error", err)

	n.skipOnce.Do(func() {
		n.setState(stateFailed)
		n.err = err
		e.wg.Done()
	})
	e.skipDependents(ctx, n)
}

func (e *Execution) skip(ctx context.Context, n *node) {
	n.skipOnce.Do(func() {
		n.setState(stateSkipped)
		e.wg.Done()
	})
	e.skipDependents(ctx, n)
}

// skipDependents transitively abandons downstream statements. Each node is
// accounted exactly once; a node that is mid-run keeps running but its
// completion becomes a no-op.
func (e *Execution) skipDependents(ctx context.Context, n *node) {
	for _, dependent := range n.dependents {
		skipped := false
		dependent.skipOnce.Do(func() {
			skipped = true
			dependent.setState(stateSkipped)
			e.wg.Done()
		})
		if skipped {
			e.skipDependents(ctx, dependent)
		}
	}
}

// addGate registers an Emit's handler wait; statements after the emitting
// one block on it before running.
func (e *Execution) addGate(index int, wait *event.Wait) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gates = append(e.gates, gate{index: index, wait: wait})
}

func (e *Execution) awaitGates(ctx context.Context, index int) error {
	e.mu.Lock()
	pending := make([]gate, 0, len(e.gates))
	pending = append(pending, e.gates...)
	e.mu.Unlock()

	for _, g := range pending {
		if g.index >= index {
			continue
		}
		if err := g.wait.Await(ctx); err != nil {
			return failure.New(failure.KindCanceled, "execution canceled while waiting for event handlers")
		}
	}
	return nil
}
