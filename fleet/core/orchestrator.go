package core

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jpamaralw/bsb-compute-project/fleet/clock"
	"github.com/jpamaralw/bsb-compute-project/fleet/journal"
	"github.com/jpamaralw/bsb-compute-project/fleet/task"
	"github.com/jpamaralw/bsb-compute-project/fleet/worker"
	"github.com/jpamaralw/bsb-compute-project/metrics"
)

// DefaultMigrationThreshold is the load-skew ratio above which the migration
// coordinator signals the most loaded worker.
const DefaultMigrationThreshold = 1.5

// idlePoll is how long the loop waits on the result channel when it had
// nothing to dispatch, in simulated seconds.
const idlePoll = 0.1

// noWorker is an ID no configured worker uses; passed to the load tracker to
// exclude nobody.
const noWorker = -1

// RequestSpec is one inference request as supplied by the external loader.
type RequestSpec struct {
	ID          int
	Kind        string
	Priority    int
	NominalCost float64
}

// Config holds the orchestrator's tunable parameters.
type Config struct {
	Policy             Policy
	MigrationThreshold float64          // <= 1 selects the default
	Seed               uint64           // seeds the arrival-delay source
	Delay              DelaySource      // optional override for admission delays
	Journal            *journal.Journal // optional decision log
}

// Result is what a finished run hands to the metrics stage.
type Result struct {
	Records         []task.Record
	Elapsed         float64 // simulated seconds from epoch to the last completion
	MigrationEvents int
	Policy          Policy
	TotalCapacity   float64
}

// Orchestrator is the central control loop: it admits requests, applies the
// scheduling policy, keeps the per-worker load accounting, and coordinates
// migrations. It is a single sequential loop; the worker agents run beside it
// and talk back only through the shared result channel. The pending queue and
// the load tracker are never touched by anything else.
type Orchestrator struct {
	cfg     Config
	clk     clock.Clock
	agents  []*worker.Agent // configured order
	byID    map[int]*worker.Agent
	loads   *loadTracker
	pending pendingQueue
	results chan worker.Event

	records           []task.Record
	admitted          int
	completed         int
	rrNext            int // RoundRobin's cyclic destination index
	migrationEvents   int
	migrationInFlight bool // a signal was sent and its hand-back has not drained yet

	delay DelaySource
	wg    sync.WaitGroup
}

// New builds an orchestrator over the given worker fleet. It refuses an empty
// fleet: running with no servers is a configuration error, not a degenerate
// simulation.
func New(descs []worker.Descriptor, cfg Config, clk clock.Clock) (*Orchestrator, error) {
	if len(descs) == 0 {
		return nil, errors.New("no workers configured")
	}
	for _, d := range descs {
		if d.Capacity <= 0 {
			return nil, fmt.Errorf("worker %d has non-positive capacity %v", d.ID, d.Capacity)
		}
	}
	if cfg.MigrationThreshold <= 1 {
		cfg.MigrationThreshold = DefaultMigrationThreshold
	}

	o := &Orchestrator{
		cfg:     cfg,
		clk:     clk,
		byID:    make(map[int]*worker.Agent, len(descs)),
		loads:   newLoadTracker(descs),
		results: make(chan worker.Event, 128),
		delay:   cfg.Delay,
	}
	if o.delay == nil {
		o.delay = NewUniformDelay(cfg.Seed)
	}
	for _, d := range descs {
		a := worker.NewAgent(d, o.results, clk)
		o.agents = append(o.agents, a)
		o.byID[d.ID] = a
	}
	return o, nil
}

// Run admits every request, drives the orchestration loop until all of them
// have completed, then shuts the workers down and returns the run result.
func (o *Orchestrator) Run(requests []RequestSpec) (*Result, error) {
	if len(requests) == 0 {
		return nil, errors.New("no requests to serve")
	}

	for _, a := range o.agents {
		o.wg.Add(1)
		go func(a *worker.Agent) {
			defer o.wg.Done()
			a.Run()
		}(a)
	}

	o.admit(requests)

	for o.completed < o.admitted {
		o.tick()
	}

	o.shutdown()

	totalCap := 0.0
	for _, a := range o.agents {
		totalCap += a.Descriptor().Capacity
	}
	return &Result{
		Records:         o.records,
		Elapsed:         o.clk.Now(),
		MigrationEvents: o.migrationEvents,
		Policy:          o.cfg.Policy,
		TotalCapacity:   totalCap,
	}, nil
}

// admit turns each request into a task and appends it to the pending queue,
// sleeping a drawn inter-arrival delay between consecutive requests. The
// first request arrives immediately. Blocking here is deliberate: admission
// models an open arrival process against the simulation clock, not a bulk
// queue fill.
func (o *Orchestrator) admit(requests []RequestSpec) {
	for i, r := range requests {
		if i > 0 {
			o.clk.Sleep(o.delay.Next())
		}
		t := &task.Task{
			ID:             r.ID,
			Kind:           r.Kind,
			Priority:       r.Priority,
			NominalCost:    r.NominalCost,
			ArrivalTime:    o.clk.Now(),
			AssignedWorker: noWorker,
			Status:         task.Pending,
		}
		o.pending.push(t)
		o.admitted++
		metrics.TasksAdmitted.Inc()
		o.appendJournal(journal.EventAdmitted, t, noWorker)
		log.WithField("t", t.ArrivalTime).Infof("admitted %v", t)
	}
}

// tick runs one orchestration cycle: drain worker events, dispatch at most
// one pending task under the active policy, then let the migration
// coordinator look at the load spread. If the cycle had nothing to dispatch
// it waits briefly on the result channel instead of spinning.
func (o *Orchestrator) tick() {
	o.drainResults()

	dispatched := false
	if o.pending.len() > 0 {
		o.dispatchNext()
		dispatched = true
	}

	o.checkMigration()

	if !dispatched && o.completed < o.admitted {
		select {
		case ev := <-o.results:
			o.handleEvent(ev)
		case <-o.clk.After(idlePoll):
		}
	}
}

// drainResults empties the result channel without blocking. The length is
// snapshotted first so events arriving mid-drain wait until the next tick,
// which keeps a single tick bounded.
func (o *Orchestrator) drainResults() {
	n := len(o.results)
	for i := 0; i < n; i++ {
		o.handleEvent(<-o.results)
	}
}

func (o *Orchestrator) handleEvent(ev worker.Event) {
	switch ev.Kind {
	case worker.Completed:
		o.handleCompleted(ev)
	case worker.Migrated:
		o.handleMigrated(ev)
	}
}

// handleCompleted finalizes a task: record its metrics, release the worker's
// load, and move it to the completed set.
func (o *Orchestrator) handleCompleted(ev worker.Event) {
	t := ev.Task
	rec := task.Record{
		TaskID:         t.ID,
		WorkerID:       ev.WorkerID,
		ArrivalTime:    t.ArrivalTime,
		StartTime:      t.StartTime,
		CompletionTime: t.CompletionTime,
		ActualDuration: ev.ActualDuration,
		Turnaround:     t.CompletionTime - t.ArrivalTime,
		Waiting:        t.StartTime - t.ArrivalTime,
		Migrated:       t.Migrated,
	}
	o.records = append(o.records, rec)
	o.loads.release(ev.WorkerID, t.NominalCost)
	o.completed++
	metrics.TasksCompleted.Inc()
	metrics.Turnaround.Observe(rec.Turnaround)
	o.appendJournal(journal.EventCompleted, t, ev.WorkerID)
	log.WithFields(log.Fields{"worker": ev.WorkerID, "t": t.CompletionTime}).
		Infof("completed req %d in %.2fs", t.ID, rec.Turnaround)
}

// handleMigrated re-routes a handed-back task to the least-loaded worker
// other than the one that gave it up. Migrated tasks skip the pending queue
// on purpose: redispatch does not re-apply the admission policy.
func (o *Orchestrator) handleMigrated(ev worker.Event) {
	t := ev.Task
	dest, ok := o.loads.leastLoaded(ev.WorkerID)
	if !ok {
		// Single-worker fleet; the coordinator never signals in that case,
		// but if it happens the task just goes back where it came from.
		dest = o.byID[ev.WorkerID].Descriptor()
	}

	o.loads.release(ev.WorkerID, t.NominalCost)
	o.loads.assign(dest.ID, t.NominalCost)
	t.AssignedWorker = dest.ID
	o.migrationInFlight = false
	o.migrationEvents++
	metrics.MigrationSignals.Inc()
	o.appendJournal(journal.EventMigrated, t, dest.ID)
	log.WithFields(log.Fields{"from": ev.WorkerID, "to": dest.ID}).
		Infof("migrated req %d", t.ID)

	o.byID[dest.ID].Inbound() <- t
}

// dispatchNext applies the active policy to the pending queue and sends the
// resulting head task to its destination worker.
func (o *Orchestrator) dispatchNext() {
	switch o.cfg.Policy {
	case ShortestJobFirst:
		o.pending.sortByCost()
	case PriorityFirst:
		o.pending.sortByPriority()
	}

	t := o.pending.pop()

	var dest worker.Descriptor
	switch o.cfg.Policy {
	case ShortestJobFirst, PriorityFirst:
		dest, _ = o.loads.leastLoaded(noWorker)
	default:
		// Load-blind cyclic assignment over the configured order. An
		// unrecognized policy value lands here too, matching RoundRobin being
		// the parse fallback.
		dest = o.agents[o.rrNext%len(o.agents)].Descriptor()
		o.rrNext++
	}

	t.AssignedWorker = dest.ID
	o.loads.assign(dest.ID, t.NominalCost)
	metrics.TasksDispatched.Inc()
	o.appendJournal(journal.EventDispatched, t, dest.ID)
	log.WithFields(log.Fields{"policy": o.cfg.Policy, "worker": dest.ID, "t": o.clk.Now()}).
		Infof("dispatching req %d", t.ID)

	o.byID[dest.ID].Inbound() <- t
}

// checkMigration compares the most and least loaded workers and, when the
// skew exceeds the threshold, signals the most loaded worker holding more
// than one outstanding task to hand one back. With fewer than two workers
// there is nowhere to move work, so nothing happens. Returns the signaled
// worker's ID, or noWorker when no signal was sent.
//
// At most one signal is outstanding at a time: once sent, the coordinator
// stays quiet until the hand-back drains and the load accounting reflects the
// move. The loop re-evaluates the same loads every idle poll, so without the
// gate repeated polls of unchanged state would stack extra signals and the
// decision sequence would depend on how long a worker stays mid-execution.
func (o *Orchestrator) checkMigration() int {
	if len(o.agents) < 2 {
		return noWorker
	}
	if o.migrationInFlight {
		return noWorker
	}
	minLoad, maxLoad := o.loads.bounds()
	if maxLoad <= 0 {
		return noWorker
	}
	if minLoad < floorEpsilon {
		minLoad = floorEpsilon
	}
	if maxLoad/minLoad <= o.cfg.MigrationThreshold {
		return noWorker
	}

	victim, ok := o.loads.migrationVictim()
	if !ok {
		// Every loaded worker is down to its executing task; normal flow.
		return noWorker
	}

	select {
	case o.byID[victim.ID].Migrate() <- struct{}{}:
		o.migrationInFlight = true
		log.WithFields(log.Fields{"worker": victim.ID, "max": maxLoad, "min": minLoad}).
			Info("migration signal sent")
		return victim.ID
	default:
		// Previous signal still unanswered; do not pile up.
		return noWorker
	}
}

// shutdown sends the sentinel to every worker and waits for the agents to
// exit.
func (o *Orchestrator) shutdown() {
	for _, a := range o.agents {
		a.Inbound() <- nil
	}
	o.wg.Wait()
}

func (o *Orchestrator) appendJournal(event string, t *task.Task, workerID int) {
	if o.cfg.Journal == nil {
		return
	}
	e := journal.Entry{
		Time:   o.clk.Now(),
		Event:  event,
		TaskID: t.ID,
	}
	if workerID != noWorker {
		e.WorkerID = workerID
	}
	if err := o.cfg.Journal.Append(e); err != nil {
		log.WithError(err).Warn("journal append failed")
	}
}
