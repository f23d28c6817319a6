package core

import (
	"strconv"

	"github.com/jpamaralw/bsb-compute-project/fleet/worker"
	"github.com/jpamaralw/bsb-compute-project/metrics"
)

// floorEpsilon is the floor applied to the minimum load when computing the
// migration skew ratio, so an idle worker still produces a finite ratio.
const floorEpsilon = 1e-6

// loadState is the orchestrator's per-worker accounting of outstanding work.
// Exclusively owned and mutated by the orchestrator; workers only learn about
// it indirectly, through dispatch and migration signals.
type loadState struct {
	accumulated float64 // sum of nominalCost/capacity over tasks owned by the worker
	pending     int     // number of tasks assigned but not completed
}

// loadTracker maps worker IDs to their load state and answers the selection
// queries the scheduler and the migration coordinator need. Worker order is
// the configured order, which also fixes tie-breaking.
type loadTracker struct {
	order   []worker.Descriptor
	byID    map[int]*loadState
	capByID map[int]float64
}

func newLoadTracker(descs []worker.Descriptor) *loadTracker {
	lt := &loadTracker{
		order:   descs,
		byID:    make(map[int]*loadState, len(descs)),
		capByID: make(map[int]float64, len(descs)),
	}
	for _, d := range descs {
		lt.byID[d.ID] = &loadState{}
		lt.capByID[d.ID] = d.Capacity
	}
	return lt
}

// assign records a task of the given nominal cost landing on a worker.
func (lt *loadTracker) assign(workerID int, nominalCost float64) {
	ls := lt.byID[workerID]
	ls.accumulated += nominalCost / lt.capByID[workerID]
	ls.pending++
	lt.export(workerID)
}

// release records a task of the given nominal cost leaving a worker, either
// by completion or by migration. Accumulated load is clamped at zero to
// absorb floating-point drift.
func (lt *loadTracker) release(workerID int, nominalCost float64) {
	ls := lt.byID[workerID]
	ls.accumulated -= nominalCost / lt.capByID[workerID]
	if ls.accumulated < 0 {
		ls.accumulated = 0
	}
	ls.pending--
	lt.export(workerID)
}

// adjusted returns a worker's load normalized once more by its capacity. The
// accumulated figure is already capacity-normalized; the reference system
// divides again when ranking destinations and that behavior is kept.
func (lt *loadTracker) adjusted(workerID int) float64 {
	return lt.byID[workerID].accumulated / lt.capByID[workerID]
}

// leastLoaded returns the worker with the smallest adjusted load, skipping
// the excluded ID (pass a value no worker uses to consider everyone). Ties
// break toward the lowest worker ID via configured order. ok is false only
// when every worker was excluded.
func (lt *loadTracker) leastLoaded(excludeID int) (worker.Descriptor, bool) {
	var best worker.Descriptor
	bestLoad := 0.0
	found := false
	for _, d := range lt.order {
		if d.ID == excludeID {
			continue
		}
		l := lt.adjusted(d.ID)
		if !found || l < bestLoad {
			best, bestLoad, found = d, l, true
		}
	}
	return best, found
}

// bounds returns the minimum and maximum accumulated load across the fleet.
func (lt *loadTracker) bounds() (min, max float64) {
	first := true
	for _, d := range lt.order {
		l := lt.byID[d.ID].accumulated
		if first {
			min, max = l, l
			first = false
			continue
		}
		if l < min {
			min = l
		}
		if l > max {
			max = l
		}
	}
	return min, max
}

// migrationVictim returns the worker with the greatest accumulated load among
// those holding more than one outstanding task. A worker whose only task is
// the one executing is never eligible; that task cannot be preempted.
func (lt *loadTracker) migrationVictim() (worker.Descriptor, bool) {
	var victim worker.Descriptor
	victimLoad := 0.0
	found := false
	for _, d := range lt.order {
		ls := lt.byID[d.ID]
		if ls.pending <= 1 {
			continue
		}
		if !found || ls.accumulated > victimLoad {
			victim, victimLoad, found = d, ls.accumulated, true
		}
	}
	return victim, found
}

// totalAccumulated sums accumulated load across the fleet. Used by tests to
// check load conservation at quiescent points.
func (lt *loadTracker) totalAccumulated() float64 {
	total := 0.0
	for _, ls := range lt.byID {
		total += ls.accumulated
	}
	return total
}

// export publishes a worker's accumulated load to the prometheus gauge.
func (lt *loadTracker) export(workerID int) {
	metrics.WorkerLoad.
		WithLabelValues(strconv.Itoa(workerID)).
		Set(lt.byID[workerID].accumulated)
}
