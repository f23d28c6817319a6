package worker

import (
	log "github.com/sirupsen/logrus"

	"github.com/jpamaralw/bsb-compute-project/fleet/clock"
	"github.com/jpamaralw/bsb-compute-project/fleet/task"
)

// Descriptor is the static identity of a simulated inference server.
// A worker of capacity C executes a task of nominal cost X in X/C simulated
// seconds. Capacity is fixed for the run.
type Descriptor struct {
	ID       int
	Capacity float64
}

// EventKind discriminates the messages a worker sends back on the shared
// result channel.
type EventKind int

const (
	Completed EventKind = iota // task finished executing
	Migrated                   // task handed back before execution
)

// Event is the only way a worker communicates with the orchestrator.
// Ownership of Task transfers with the event.
type Event struct {
	Kind           EventKind
	WorkerID       int
	Task           *task.Task
	ActualDuration float64 // set for Completed events
}

// idleWait is how long an idle agent blocks on its inbound channel before
// re-checking, in simulated seconds.
const idleWait = 0.1

// Agent simulates one inference server. It owns a local queue of dispatched
// tasks, executes one at a time, and answers out-of-band migration signals
// between executions. All cross-component communication is through channels;
// the agent never touches orchestrator state.
type Agent struct {
	desc    Descriptor
	inbound chan *task.Task // orchestrator -> worker; nil task = shut down
	migrate chan struct{}   // orchestrator -> worker; at most one outstanding signal
	results chan<- Event    // shared worker -> orchestrator channel
	clk     clock.Clock
	queue   []*task.Task // locally held, not-yet-started tasks
}

// NewAgent creates an agent bound to the given descriptor. The agent is inert
// until Run is called.
func NewAgent(desc Descriptor, results chan<- Event, clk clock.Clock) *Agent {
	return &Agent{
		desc:    desc,
		inbound: make(chan *task.Task, 64),
		migrate: make(chan struct{}, 1),
		results: results,
		clk:     clk,
	}
}

// Descriptor returns the agent's static descriptor.
func (a *Agent) Descriptor() Descriptor {
	return a.desc
}

// Inbound is the channel the orchestrator dispatches tasks on.
func (a *Agent) Inbound() chan<- *task.Task {
	return a.inbound
}

// Migrate is the channel the orchestrator sends migration signals on.
func (a *Agent) Migrate() chan<- struct{} {
	return a.migrate
}

// Run is the agent's loop. Each pass drains the inbound channel into the
// local queue, answers any pending migration signals, then executes the most
// urgent queued task. A nil task on the inbound channel shuts the agent down.
//
// Migration takes precedence over starting new work: if a task was handed
// back this pass, execution is skipped until the next pass. A task that has
// begun executing is never handed back; the agent only checks the migration
// channel between executions.
func (a *Agent) Run() {
	log.WithFields(log.Fields{"worker": a.desc.ID, "capacity": a.desc.Capacity}).
		Info("worker ready")

	for {
		if stop := a.drainInbound(); stop {
			log.WithField("worker", a.desc.ID).Info("worker shutting down")
			return
		}

		if len(a.queue) == 0 {
			// Idle: wait briefly for work rather than spinning.
			select {
			case t := <-a.inbound:
				if t == nil {
					log.WithField("worker", a.desc.ID).Info("worker shutting down")
					return
				}
				t.Status = task.Queued
				a.queue = append(a.queue, t)
			case <-a.clk.After(idleWait):
				continue
			}
		}

		if a.answerMigrations() {
			continue
		}

		if len(a.queue) > 0 {
			a.execute(a.takeMostUrgent())
		}
	}
}

// drainInbound moves everything waiting on the inbound channel into the local
// queue without blocking. Returns true if the shutdown sentinel was seen.
func (a *Agent) drainInbound() bool {
	for {
		select {
		case t := <-a.inbound:
			if t == nil {
				return true
			}
			t.Status = task.Queued
			a.queue = append(a.queue, t)
		default:
			return false
		}
	}
}

// answerMigrations drains the migration-signal channel without blocking. For
// each signal, while at least one not-yet-started task is held, the least
// urgent queued task (largest priority number) is marked migrated and handed
// back on the result channel. Reports whether any task was handed back.
func (a *Agent) answerMigrations() bool {
	handedBack := false
	for {
		select {
		case <-a.migrate:
			t := a.takeLeastUrgent()
			if t == nil {
				// Signal raced with the queue draining; nothing to give back.
				continue
			}
			t.Migrated = true
			t.Status = task.Pending
			log.WithFields(log.Fields{"worker": a.desc.ID, "task": t.ID}).
				Info("handing back task for migration")
			a.results <- Event{Kind: Migrated, WorkerID: a.desc.ID, Task: t}
			handedBack = true
		default:
			return handedBack
		}
	}
}

// execute runs a single task to completion: the suspension is the execution
// simulation. Start and completion are stamped against the shared clock.
func (a *Agent) execute(t *task.Task) {
	actual := t.NominalCost / a.desc.Capacity
	t.Status = task.Executing
	t.StartTime = a.clk.Now()

	log.WithFields(log.Fields{
		"worker": a.desc.ID,
		"task":   t.ID,
		"t":      t.StartTime,
	}).Infof("executing %v for %.2fs", t, actual)

	a.clk.Sleep(actual)

	t.CompletionTime = a.clk.Now()
	t.Status = task.Completed
	a.results <- Event{
		Kind:           Completed,
		WorkerID:       a.desc.ID,
		Task:           t,
		ActualDuration: actual,
	}
}

// takeMostUrgent removes and returns the queued task with the lowest priority
// number, keeping queue order among ties. This local re-sort applies under
// every orchestration policy.
func (a *Agent) takeMostUrgent() *task.Task {
	best := 0
	for i, t := range a.queue[1:] {
		if t.Priority < a.queue[best].Priority {
			best = i + 1
		}
	}
	return a.removeAt(best)
}

// takeLeastUrgent removes and returns the queued task with the highest
// priority number, or nil if the queue is empty. Only queued tasks are
// eligible; the executing task is never in the queue.
func (a *Agent) takeLeastUrgent() *task.Task {
	if len(a.queue) == 0 {
		return nil
	}
	worst := 0
	for i, t := range a.queue[1:] {
		if t.Priority > a.queue[worst].Priority {
			worst = i + 1
		}
	}
	return a.removeAt(worst)
}

func (a *Agent) removeAt(i int) *task.Task {
	t := a.queue[i]
	a.queue = append(a.queue[:i], a.queue[i+1:]...)
	return t
}
