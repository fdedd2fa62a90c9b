package scheduler

import (
	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/registry"
)

// buildPlan resolves every statement against the registry and wires the
// dependency edges:
//
//   - a statement depends on the most recent earlier statement binding a
//     name it references;
//   - two statements binding the same name keep their declared order (the
//     second then fails AlreadyBound deterministically);
//   - an externally visible statement (EXPORT, RESPONSE) depends on every
//     preceding statement, and every following statement depends on it.
//     Effects therefore appear in source order, an earlier failure reliably
//     aborts them, and an Emit's handler wait is in place before any later
//     statement runs.
func buildPlan(fs *lang.FeatureSet, reg *registry.Registry) ([]*node, error) {
	nodes := make([]*node, 0, len(fs.Statements))
	writers := make(map[string]*node)
	var lastEffect *node

	for _, stmt := range fs.Statements {
		action, err := reg.Resolve(stmt)
		if err != nil {
			return nil, err
		}
		n := &node{stmt: stmt, action: action}

		for _, name := range referencedNames(stmt, action.Role) {
			if writer, ok := writers[name]; ok {
				addEdge(writer, n)
			}
		}

		if lastEffect != nil {
			addEdge(lastEffect, n)
		}
		if action.Role == registry.RoleExport || action.Role == registry.RoleResponse {
			for _, prev := range nodes {
				addEdge(prev, n)
			}
			lastEffect = n
		}

		if action.Role == registry.RoleRequest || action.Role == registry.RoleOwn {
			if writer, ok := writers[stmt.Result.Name]; ok {
				addEdge(writer, n)
			}
			writers[stmt.Result.Name] = n
		}

		nodes = append(nodes, n)
	}
	return nodes, nil
}

// referencedNames lists the root identifiers a statement may read from the
// binding store: its object, its where operands, its with operand, and,
// for externally visible statements, its result. Names no earlier
// statement binds resolve elsewhere (trigger payload, repositories, labels)
// and simply produce no edge.
func referencedNames(stmt *lang.Statement, role registry.Role) []string {
	var names []string
	if stmt.ObjectLiteral == nil && stmt.Object.Name != "" {
		names = append(names, stmt.Object.Name)
	}
	for _, w := range stmt.Where {
		if w.Operand.IsRef() {
			names = append(names, w.Operand.Ref.Name)
		}
	}
	if stmt.With != nil && stmt.With.IsRef() {
		names = append(names, stmt.With.Ref.Name)
	}
	if role == registry.RoleExport || role == registry.RoleResponse {
		names = append(names, stmt.Result.Name)
	}
	return names
}
