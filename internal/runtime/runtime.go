// Package runtime assembles a loaded program and a resolved action registry
// into a running core: it owns the shared worker pool, the event bus, the
// repository store, and the lifecycle executions.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/event"
	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/registry"
	"github.com/arolang/aro/internal/repository"
	"github.com/arolang/aro/internal/scheduler"
)

// EffectSink receives every externally visible effect of every execution,
// in that execution's source order. Observability collaborators attach
// here.
type EffectSink func(featureSet string, effect scheduler.Effect)

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithWorkers sets the shared pool's worker count.
func WithWorkers(n int) Option {
	return func(r *Runtime) { r.workers = n }
}

// WithRequestTimeout bounds the I/O started by REQUEST-role actions.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Runtime) { r.requestTimeout = d }
}

// WithShutdownTimeout bounds the shutdown-phase executions.
func WithShutdownTimeout(d time.Duration) Option {
	return func(r *Runtime) { r.shutdownTimeout = d }
}

// WithEffectSink attaches a sink for the ordered effect log.
func WithEffectSink(sink EffectSink) Option {
	return func(r *Runtime) { r.sink = sink }
}

// Runtime is the execution core behind the trigger boundary.
type Runtime struct {
	program  *lang.Program
	registry *registry.Registry
	repos    *repository.Store
	bus      *event.Bus
	pool     *scheduler.Pool

	workers         int
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	sink            EffectSink
	listeners       []repository.Notifier
}

// New wires a runtime. Every statement of every feature set is resolved
// against the registry up front, so unknown verbs and invalid prepositions
// are configuration errors at load time, not at trigger time.
func New(program *lang.Program, reg *registry.Registry, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		program:         program,
		registry:        reg,
		repos:           repository.New(),
		requestTimeout:  10 * time.Second,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}

	var problems []string
	for _, fs := range program.FeatureSets {
		for _, stmt := range fs.Statements {
			if _, err := reg.Resolve(stmt); err != nil {
				problems = append(problems, err.Error())
			}
		}
	}
	if len(problems) > 0 {
		return nil, failure.New(failure.KindConfiguration,
			"program does not resolve against the action registry:\n- %s", strings.Join(problems, "\n- "))
	}

	r.bus = event.NewBus(r.runHandler)
	for _, fs := range program.FeatureSets {
		r.bus.Register(fs)
	}
	r.repos.SetNotifier(r.notifyObservers)
	r.pool = scheduler.NewPool(scheduler.WithWorkers(r.workers))
	return r, nil
}

// Repositories exposes the shared store to host collaborators (durable
// observers, tests).
func (r *Runtime) Repositories() *repository.Store {
	return r.repos
}

// Bus exposes the event bus to trigger listeners.
func (r *Runtime) Bus() *event.Bus {
	return r.bus
}

// AddChangeListener attaches a host-level repository observer next to the
// language-level ones. Attach before Start; dispatch is not synchronized
// with registration.
func (r *Runtime) AddChangeListener(n repository.Notifier) {
	r.listeners = append(r.listeners, n)
}

func (r *Runtime) config() scheduler.Config {
	return scheduler.Config{
		Registry:       r.registry,
		Repos:          r.repos,
		Bus:            r.bus,
		Pool:           r.pool,
		RequestTimeout: r.requestTimeout,
	}
}

// runHandler is the bus's invoker: one independent execution per matching
// handler. Its failure is isolated by the bus.
func (r *Runtime) runHandler(ctx context.Context, fs *lang.FeatureSet, ev event.Event) error {
	result := scheduler.Run(ctx, r.config(), fs, ev)
	r.drainEffects(fs, result)
	return result.Err
}

// notifyObservers turns a repository change into a "{repository} Observer"
// event and dispatches it without waiting: observer failures never reach
// the mutating execution. Orphaned observers run to completion even if the
// mutating execution is canceled afterwards.
func (r *Runtime) notifyObservers(ctx context.Context, change repository.Change) {
	for _, listener := range r.listeners {
		listener(ctx, change)
	}
	ev := event.New(fmt.Sprintf("%s Observer", change.Repository), map[string]any{
		"changeType": string(change.Type),
		"entityId":   change.EntityID,
		"oldValue":   change.OldValue,
		"newValue":   change.NewValue,
		"timestamp":  change.Timestamp.Format(time.RFC3339Nano),
		"repository": change.Repository,
		"scope":      change.Scope,
	})
	r.bus.Dispatch(context.WithoutCancel(ctx), ev)
}

func (r *Runtime) drainEffects(fs *lang.FeatureSet, result scheduler.Result) {
	if r.sink == nil {
		return
	}
	for _, effect := range result.Effects {
		r.sink(fs.Name, effect)
	}
}

// Start launches the worker pool and runs the Start-Up execution
// synchronously. A Start-Up failure is fatal to the host.
func (r *Runtime) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	r.pool.Start(ctx)

	start := r.program.Start()
	if start == nil {
		return failure.New(failure.KindStructural, "program has no %q feature set", lang.StartUpName)
	}
	logger.Info("🚀 Running start-up execution.", "featureSet", start.Name)
	result := scheduler.Run(ctx, r.config(), start, event.New(lang.StartUpName, nil))
	r.drainEffects(start, result)
	return result.Err
}

// Trigger delivers an external event: every matching handler runs as an
// independent execution. The returned result is the one that produced a
// RESPONSE, or the first failure when none responded. The structured
// failure reaches the boundary exactly once, here.
func (r *Runtime) Trigger(ctx context.Context, ev event.Event) scheduler.Result {
	handlers := r.bus.Handlers(ev)
	if len(handlers) == 0 {
		ctxlog.FromContext(ctx).Debug("No handler matched trigger.", "event", ev.Name)
		return scheduler.Result{}
	}

	results := make([]scheduler.Result, len(handlers))
	done := make(chan int, len(handlers))
	for i, fs := range handlers {
		go func(i int, fs *lang.FeatureSet) {
			results[i] = scheduler.Run(ctx, r.config(), fs, ev)
			r.drainEffects(fs, results[i])
			done <- i
		}(i, fs)
	}
	for range handlers {
		<-done
	}

	for _, result := range results {
		if result.Responded {
			return result
		}
	}
	for _, result := range results {
		if result.Err != nil {
			return result
		}
	}
	return results[0]
}

// Shutdown runs the success or error shutdown execution, bounded by the
// shutdown timeout, then drains the worker pool.
func (r *Runtime) Shutdown(ctx context.Context, afterFailure bool) error {
	logger := ctxlog.FromContext(ctx)
	name := lang.ShutDownName
	if afterFailure {
		name = lang.ShutDownErrorName
	}

	var err error
	if fs := r.program.Find(name); fs != nil {
		logger.Info("🏁 Running shutdown execution.", "featureSet", name)
		shutdownCtx, cancel := context.WithTimeout(ctx, r.shutdownTimeout)
		result := scheduler.Run(shutdownCtx, r.config(), fs, event.New(name, nil))
		cancel()
		r.drainEffects(fs, result)
		err = result.Err
	}

	r.pool.Close()
	return err
}
