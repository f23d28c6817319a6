package core

import (
	"sort"

	"github.com/jpamaralw/bsb-compute-project/fleet/task"
)

// pendingQueue is the orchestrator's admission queue. Policies reorder it
// with stable sorts so that tasks tying on the sort key keep arrival order.
type pendingQueue []*task.Task

func (q *pendingQueue) push(t *task.Task) {
	*q = append(*q, t)
}

// pop removes and returns the head of the queue.
func (q *pendingQueue) pop() *task.Task {
	old := *q
	t := old[0]
	old[0] = nil // avoid holding the reference
	*q = old[1:]
	return t
}

func (q pendingQueue) len() int {
	return len(q)
}

// sortByCost orders the queue ascending by nominal cost (shortest job first).
func (q pendingQueue) sortByCost() {
	sort.SliceStable(q, func(i, j int) bool {
		return q[i].NominalCost < q[j].NominalCost
	})
}

// sortByPriority orders the queue ascending by priority number (most urgent
// first).
func (q pendingQueue) sortByPriority() {
	sort.SliceStable(q, func(i, j int) bool {
		return q[i].Priority < q[j].Priority
	})
}
