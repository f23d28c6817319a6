package task

import "fmt"

// Status represents the lifecycle state of a task.
type Status int

const (
	Pending   Status = iota // Waiting in the orchestrator's queue
	Queued                  // Held in a worker's local queue, not started
	Executing               // Running on a worker
	Completed               // Finished execution
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Queued:
		return "queued"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Task represents one inference request moving through the fleet.
//
// A task is owned by exactly one place at a time: the orchestrator's pending
// queue, a worker's local queue, a worker's executing slot, or the completed
// set. Ownership transfers only through channels, which is what keeps the
// load accounting free of double counting.
type Task struct {
	ID          int
	Kind        string
	Priority    int     // Lower value = more urgent (1 is highest)
	NominalCost float64 // Execution cost in abstract time units

	ArrivalTime    float64 // Simulation-relative, set once on admission
	StartTime      float64 // Set by the worker that executes it
	CompletionTime float64 // Set by the worker that executes it

	AssignedWorker int  // ID of the worker the task was dispatched to
	Migrated       bool // Sticky: once migrated, stays true
	Status         Status
}

func (t *Task) String() string {
	return fmt.Sprintf("req %d (%s, prio %d, cost %.1f, arrived %.1fs)",
		t.ID, t.Kind, t.Priority, t.NominalCost, t.ArrivalTime)
}

// Record is the per-task metric record emitted when a task completes.
type Record struct {
	TaskID         int
	WorkerID       int
	ArrivalTime    float64
	StartTime      float64
	CompletionTime float64
	ActualDuration float64 // NominalCost / capacity of the executing worker
	Turnaround     float64 // CompletionTime - ArrivalTime
	Waiting        float64 // StartTime - ArrivalTime
	Migrated       bool
}
