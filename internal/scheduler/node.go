package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/arolang/aro/internal/lang"
	"github.com/arolang/aro/internal/registry"
)

// nodeState tracks a statement node through its lifecycle.
type nodeState int32

const (
	statePending nodeState = iota
	stateRunning
	stateDone
	stateSkipped
	stateFailed
)

// node is one statement of one execution, with its dependency bookkeeping.
type node struct {
	stmt   *lang.Statement
	action *registry.Action

	dependents []*node
	depCount   atomic.Int32
	state      atomic.Int32
	skipOnce   sync.Once
	err        error
}

func (n *node) setState(s nodeState) {
	n.state.Store(int32(s))
}

func (n *node) is(s nodeState) bool {
	return nodeState(n.state.Load()) == s
}

// addEdge makes `to` depend on `from`. Duplicate edges between the same
// pair are collapsed so the dep count stays accurate.
func addEdge(from, to *node) {
	for _, existing := range from.dependents {
		if existing == to {
			return
		}
	}
	from.dependents = append(from.dependents, to)
	to.depCount.Add(1)
}
