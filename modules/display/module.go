// Package display provides the Show action: ordered observability output
// on the host's standard output.
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/arolang/aro/internal/registry"
)

// Module implements the registry.Module interface for this package. Output
// defaults to os.Stdout; tests inject a buffer.
type Module struct {
	Output io.Writer

	mu sync.Mutex
}

// execute renders the object value:
//
//	Show receipt of confirmed-order
//
// Entities print one sorted key per line; everything else prints with %v.
// The full ordering barrier of externally visible statements keeps
// interleaved executions from mixing lines within one feature set.
func (m *Module) execute(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
	var v any
	if inv.ObjectLiteral != nil {
		v = *inv.ObjectLiteral
	} else {
		resolved, err := ec.ResolveRef(ctx, inv.Object)
		if err != nil {
			return nil, err
		}
		v = resolved
	}

	out := m.Output
	if out == nil {
		out = os.Stdout
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch typed := v.(type) {
	case map[string]any:
		fmt.Fprintf(out, "%s:\n", inv.Result.Name)
		keys := make([]string, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s = %v\n", k, typed[k])
		}
	case nil:
		fmt.Fprintf(out, "%s: (null)\n", inv.Result.Name)
	default:
		fmt.Fprintf(out, "%s: %v\n", inv.Result.Name, typed)
	}

	return v, nil
}

// Register registers the action with the registry.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Action{
		Name:         "display",
		Role:         registry.RoleExport,
		Verbs:        []string{"Show"},
		Prepositions: []string{"of"},
		Execute:      m.execute,
	})
}
