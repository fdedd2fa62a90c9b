// Package failure defines the structured failure surfaced to a trigger
// boundary: a kind, a business-language message, and the originating
// statement. The core hands exactly one of these per failed execution to the
// collaborator that delivered the trigger.
package failure

import (
	"errors"
	"fmt"

	"github.com/arolang/aro/internal/lang"
)

// Kind classifies a failure for boundary collaborators.
type Kind string

const (
	KindParse               Kind = "parse"
	KindStructural          Kind = "structural"
	KindUnknownVerb         Kind = "unknown-verb"
	KindInvalidPreposition  Kind = "invalid-preposition"
	KindUnboundName         Kind = "unbound-name"
	KindAlreadyBound        Kind = "already-bound"
	KindUnresolvedQualifier Kind = "unresolved-qualifier"
	KindAction              Kind = "action"
	KindStateMismatch       Kind = "state-mismatch"
	KindTimeout             Kind = "timeout"
	KindConfiguration       Kind = "configuration"
	KindCanceled            Kind = "canceled"
)

// Failure is the single structured failure object of an execution.
type Failure struct {
	Kind      Kind
	Message   string
	Statement *lang.Statement // nil for load-time and configuration failures
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Statement != nil {
		return fmt.Sprintf("%s: %s (at %s)", f.Kind, f.Message, f.Statement.Pos)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// New builds a failure without an originating statement.
func New(kind Kind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At builds a failure attached to its originating statement.
func At(kind Kind, stmt *lang.Statement, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...), Statement: stmt}
}

// Action builds the business-language ActionFailure for a statement: the
// failing verb, result, object, and where clause, followed by the reason.
func Action(stmt *lang.Statement, reason string) *Failure {
	return &Failure{
		Kind:      KindAction,
		Message:   fmt.Sprintf("could not %s: %s", stmt.Describe(), reason),
		Statement: stmt,
	}
}

// Wrap attaches a statement to an error, preserving an existing Failure's
// kind. Plain errors and statement-less action failures become
// ActionFailures describing the failing statement, so the message always
// carries the verb, result, object, and where clause.
func Wrap(stmt *lang.Statement, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		if f.Statement != nil {
			return f
		}
		if f.Kind == KindAction {
			return Action(stmt, f.Message)
		}
		return &Failure{Kind: f.Kind, Message: f.Message, Statement: stmt}
	}
	return Action(stmt, err.Error())
}

// KindOf extracts the failure kind from an error chain; plain errors report
// KindAction.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindAction
}
