// Package lang defines the parsed representation of an ARO program: feature
// sets, statements, references, and the reserved lifecycle names. Everything
// here is immutable once the parser returns it.
package lang

import (
	"fmt"
	"strings"

	"github.com/arolang/aro/internal/value"
)

// Reserved feature-set names with lifecycle meaning. A program declares
// exactly one Start-Up unit and at most one of each shutdown unit.
const (
	StartUpName       = "Start-Up"
	ShutDownName      = "Shut-Down"
	ShutDownErrorName = "Shut-Down-Error"
)

// observerSuffix marks feature sets that observe repository changes, e.g.
// "order-repository Observer".
const observerSuffix = " Observer"

// ObservedRepository reports whether a feature-set name follows the
// "{repository} Observer" pattern and, if so, which repository it watches.
func ObservedRepository(name string) (string, bool) {
	if repo, ok := strings.CutSuffix(name, observerSuffix); ok && repo != "" {
		return repo, true
	}
	return "", false
}

// Position locates a construct in its source unit.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Program is the ordered set of feature sets parsed from all loaded source
// units.
type Program struct {
	FeatureSets []*FeatureSet
}

// Find returns the feature set with the given name, or nil.
func (p *Program) Find(name string) *FeatureSet {
	for _, fs := range p.FeatureSets {
		if fs.Name == name {
			return fs
		}
	}
	return nil
}

// Start returns the program's Start-Up feature set, or nil if the structural
// pass has not enforced its presence yet.
func (p *Program) Start() *FeatureSet {
	return p.Find(StartUpName)
}

// FeatureSet is a named, independently-triggerable unit of sequential
// statements. The name doubles as the event-trigger key.
type FeatureSet struct {
	Name       string
	Activity   string // business-activity label; scopes repository access
	Guard      *StateGuard
	Statements []*Statement
	Pos        Position
}

// StateGuard gates event-handler activation on payload fields. Clauses are
// ANDed; the values within one clause are alternatives.
type StateGuard struct {
	Clauses []GuardClause
}

// GuardClause matches one payload field against a set of acceptable values.
type GuardClause struct {
	Field  string
	Values []any
}

// Matches reports whether the payload satisfies every clause of the guard.
func (g *StateGuard) Matches(payload map[string]any) bool {
	if g == nil {
		return true
	}
	for _, clause := range g.Clauses {
		actual, ok := payload[clause.Field]
		if !ok {
			return false
		}
		matched := false
		for _, want := range clause.Values {
			if value.Equal(actual, want) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Reference names a binding, repository, event, or external input, with an
// optional qualifier path into its structure.
type Reference struct {
	Name string
	Path value.Path
}

func (r Reference) String() string {
	if len(r.Path) == 0 {
		return r.Name
	}
	return r.Name + "." + r.Path.String()
}

// Operand is either a literal value or a reference; it appears in where
// clauses and with clauses.
type Operand struct {
	Literal any
	Ref     *Reference
}

// IsRef reports whether the operand is a reference rather than a literal.
func (o Operand) IsRef() bool { return o.Ref != nil }

func (o Operand) String() string {
	if o.Ref != nil {
		return o.Ref.String()
	}
	return fmt.Sprintf("%v", o.Literal)
}

// WhereClause is one `field = operand` condition; a statement's conditions
// are ANDed.
type WhereClause struct {
	Field   string
	Operand Operand
}

// Statement is one action-result-object line. Immutable once parsed.
type Statement struct {
	Index       int // position within the feature set, 0-based
	Verb        string
	Result      Reference
	Preposition string
	Object      Reference
	// ObjectLiteral is set instead of Object when the object position holds
	// a quoted string, e.g. a URL: Fetch rates from "https://...".
	ObjectLiteral *string
	Where         []WhereClause
	With          *Operand
	Pos           Position
}

// Describe renders the statement in business language for failure messages:
// the verb, result, object, and any where clause, lowercased the way the
// source reads.
func (s *Statement) Describe() string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(s.Verb))
	sb.WriteString(" ")
	sb.WriteString(s.Result.String())
	sb.WriteString(" ")
	sb.WriteString(s.Preposition)
	sb.WriteString(" ")
	if s.ObjectLiteral != nil {
		fmt.Fprintf(&sb, "%q", *s.ObjectLiteral)
	} else {
		sb.WriteString(s.Object.String())
	}
	for i, w := range s.Where {
		if i == 0 {
			sb.WriteString(" where ")
		} else {
			sb.WriteString(" and ")
		}
		fmt.Fprintf(&sb, "%s = %s", w.Field, w.Operand.String())
	}
	return sb.String()
}
