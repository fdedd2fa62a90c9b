package testutil

import (
	"context"
	"math/rand"
	"time"

	"github.com/arolang/aro/internal/binding"
	"github.com/arolang/aro/internal/registry"
)

// SleeperModule registers the Acquire verb: a REQUEST action that settles
// after a random delay, used to shake out ordering assumptions. The bound
// value is the statement's object (literal or reference), resolved before
// the delay starts.
type SleeperModule struct {
	MaxDelay time.Duration
}

func (m *SleeperModule) delay() time.Duration {
	if m.MaxDelay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(m.MaxDelay)))
}

func (m *SleeperModule) execute(ctx context.Context, ec registry.ExecutionContext, inv registry.Invocation) (any, error) {
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

	fut := binding.NewFuture()
	go func(d time.Duration) {
		time.Sleep(d)
		fut.Resolve(v, nil)
	}(m.delay())
	return fut, nil
}

// Register registers the action with the registry.
func (m *SleeperModule) Register(r *registry.Registry) error {
	return r.Register(&registry.Action{
		Name:         "testutil.sleeper",
		Role:         registry.RoleRequest,
		Verbs:        []string{"Acquire"},
		Prepositions: []string{"from"},
		Execute:      m.execute,
	})
}
