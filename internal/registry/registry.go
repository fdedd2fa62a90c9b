package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/arolang/aro/internal/event"
	"github.com/arolang/aro/internal/failure"
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/repository"
)

// Role classifies an action's direction of data flow. The role is an
// executable contract: the execution context rejects operations outside it.
type Role int

const (
	// RoleRequest brings external data in: the action may start I/O and
	// binds its result, possibly as a resolvable handle.
	RoleRequest Role = iota
	// RoleOwn transforms internal data into internal data.
	RoleOwn
	// RoleResponse delivers the terminal value of an execution. No further
	// statements run after a successful RESPONSE.
	RoleResponse
	// RoleExport produces an externally visible, non-terminal effect:
	// repository writes, emitted events, observability output.
	RoleExport
)

func (r Role) String() string {
	switch r {
	case RoleRequest:
		return "REQUEST"
	case RoleOwn:
		return "OWN"
	case RoleResponse:
		return "RESPONSE"
	case RoleExport:
		return "EXPORT"
	}
	return "UNKNOWN"
}

// ExecutionContext is the capability surface handed to an executing action.
// Implementations gate each operation by the invoking action's role.
type ExecutionContext interface {
	// Activity returns the business-activity label of the running feature
	// set; it scopes repository access.
	Activity() string

	// Trigger returns the event that started this execution.
	Trigger() event.Event

	// Get returns a bound value without blocking; the value may be an
	// unresolved handle.
	Get(name string) (any, bool)

	// Require returns a bound value, awaiting it if it is a pending handle.
	// Absent names fail with UnboundName.
	Require(ctx context.Context, name string) (any, error)

	// ResolveRef reads a reference: Require on its name, then qualifier
	// navigation. Repository names resolve to their scoped list with
	// reverse-chronological indexing.
	ResolveRef(ctx context.Context, ref lang.Reference) (any, error)

	// ResolveOperand evaluates a where/with operand to a concrete value.
	ResolveOperand(ctx context.Context, op lang.Operand) (any, error)

	// Bind creates a new binding. Only REQUEST and OWN actions may bind;
	// RESPONSE and EXPORT actions get a configuration failure.
	Bind(name string, v any) error

	// Repository gives access to the shared repository store, scoped by the
	// execution's business activity. Mutations are restricted to EXPORT
	// actions.
	Repository() RepositoryAccess

	// Emit dispatches an event to its handlers and returns a wait handle
	// for the direct handler executions. Restricted to EXPORT actions.
	Emit(ctx context.Context, ev event.Event) (*event.Wait, error)

	// RequestTimeout is the deadline REQUEST-role actions apply to the I/O
	// they start.
	RequestTimeout() time.Duration
}

// RepositoryAccess is the repository surface exposed to actions: reads for
// any role, writes for EXPORT only (the implementation enforces this).
type RepositoryAccess interface {
	Retrieve(repo string, pred repository.Predicate) []any
	At(repo string, index int) (any, bool)
	Store(ctx context.Context, repo string, v any) (repository.Change, error)
	Delete(ctx context.Context, repo string, pred repository.Predicate) ([]repository.Change, error)
}

// Invocation carries the read-only descriptors of the resolved statement:
// what to produce, what to read, and the statement's clauses.
type Invocation struct {
	Result lang.Reference
	Object lang.Reference
	// ObjectLiteral is set instead of Object for quoted-string objects.
	ObjectLiteral *string
	Preposition   string
	Where         []lang.WhereClause
	With          *lang.Operand
}

// ExecuteFunc runs one statement. The returned value is interpreted by the
// scheduler according to the action's role: bound for REQUEST/OWN, recorded
// as the effect for EXPORT, delivered as the terminal value for RESPONSE.
type ExecuteFunc func(ctx context.Context, ec ExecutionContext, inv Invocation) (any, error)

// Action is a registered capability: a role, the verbs it serves, the
// prepositions those verbs accept, and the execute contract. Actions are
// stateless and must be safe under concurrent invocation.
type Action struct {
	Name         string
	Role         Role
	Verbs        []string
	Prepositions []string
	Execute      ExecuteFunc
}

// Module is implemented by packages that contribute actions to a registry.
type Module interface {
	Register(r *Registry) error
}

// Registry is the verb→Action map. Built once at startup, read-only after.
type Registry struct {
	actions map[string]*Action
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{actions: make(map[string]*Action)}
}

// Register adds an action under each of its verbs. Re-registering a verb is
// a configuration error and leaves the original registration authoritative.
func (r *Registry) Register(a *Action) error {
	for _, verb := range a.Verbs {
		if existing, ok := r.actions[verb]; ok {
			return failure.New(failure.KindConfiguration,
				"verb '%s' is already registered by action '%s'", verb, existing.Name)
		}
	}
	for _, verb := range a.Verbs {
		slog.Debug("Registering action verb.", "verb", verb, "action", a.Name, "role", a.Role.String())
		r.actions[verb] = a
	}
	return nil
}

// Resolve looks up the statement's verb and checks its preposition against
// the action's valid set.
func (r *Registry) Resolve(stmt *lang.Statement) (*Action, error) {
	action, ok := r.actions[stmt.Verb]
	if !ok {
		return nil, failure.At(failure.KindUnknownVerb, stmt, "no action is registered for verb '%s'", stmt.Verb)
	}
	for _, prep := range action.Prepositions {
		if prep == stmt.Preposition {
			return action, nil
		}
	}
	return nil, failure.At(failure.KindInvalidPreposition, stmt,
		"verb '%s' does not accept preposition '%s' (valid: %v)", stmt.Verb, stmt.Preposition, action.Prepositions)
}

// Verbs returns the registered verb set, for startup logging.
func (r *Registry) Verbs() []string {
	verbs := make([]string, 0, len(r.actions))
	for v := range r.actions {
		verbs = append(verbs, v)
	}
	return verbs
}
