package core

import (
	"testing"

	"github.com/jpamaralw/bsb-compute-project/fleet/clock"
	"github.com/jpamaralw/bsb-compute-project/fleet/task"
	"github.com/jpamaralw/bsb-compute-project/fleet/worker"
)

// descsWithCaps builds worker descriptors with IDs 1..n in configured order.
func descsWithCaps(caps ...float64) []worker.Descriptor {
	descs := make([]worker.Descriptor, len(caps))
	for i, c := range caps {
		descs[i] = worker.Descriptor{ID: i + 1, Capacity: c}
	}
	return descs
}

// newTestOrch builds an orchestrator on a manual clock with a fixed arrival
// delay and migrations effectively disabled. The worker agents are never
// started: dispatch lands in their (buffered) inbound channels, which is
// enough to observe every scheduling decision.
func newTestOrch(t *testing.T, policy Policy, descs []worker.Descriptor) *Orchestrator {
	t.Helper()
	o, err := New(descs, Config{
		Policy:             policy,
		MigrationThreshold: 1e9,
		Delay:              &FixedDelays{Delays: []float64{0.5}},
	}, clock.NewManual())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func pushTasks(o *Orchestrator, tasks ...*task.Task) {
	for _, tk := range tasks {
		o.pending.push(tk)
		o.admitted++
	}
}

func TestNew_RejectsEmptyFleet(t *testing.T) {
	if _, err := New(nil, Config{Policy: RoundRobin}, clock.NewManual()); err == nil {
		t.Fatal("expected error for empty worker set")
	}
}

func TestRun_RejectsEmptyRequestSet(t *testing.T) {
	o := newTestOrch(t, RoundRobin, descsWithCaps(1))
	if _, err := o.Run(nil); err == nil {
		t.Fatal("expected error for empty request set")
	}
}

func TestRoundRobin_CyclesDestinationsIgnoringLoad(t *testing.T) {
	o := newTestOrch(t, RoundRobin, descsWithCaps(1, 1, 1))

	// Pile load onto worker 1; round robin must not care.
	o.loads.assign(1, 100)

	tasks := make([]*task.Task, 7)
	for i := range tasks {
		tasks[i] = &task.Task{ID: i + 1, Priority: 1, NominalCost: 1}
	}
	pushTasks(o, tasks...)

	for range tasks {
		o.dispatchNext()
	}

	want := []int{1, 2, 3, 1, 2, 3, 1}
	for i, tk := range tasks {
		if tk.AssignedWorker != want[i] {
			t.Errorf("task %d: expected worker %d, got %d", tk.ID, want[i], tk.AssignedWorker)
		}
	}
}

func TestDispatch_UnrecognizedPolicyActsAsRoundRobin(t *testing.T) {
	// A Config built without ParsePolicy can carry an arbitrary policy
	// string; dispatch treats anything but SJF and PRIORIDADE as round
	// robin, the same fallback the parser applies.
	o := newTestOrch(t, Policy("FIFO"), descsWithCaps(1, 1, 1))

	o.loads.assign(1, 100)

	tasks := make([]*task.Task, 4)
	for i := range tasks {
		tasks[i] = &task.Task{ID: i + 1, Priority: 1, NominalCost: 1}
	}
	pushTasks(o, tasks...)

	for range tasks {
		o.dispatchNext()
	}

	want := []int{1, 2, 3, 1}
	for i, tk := range tasks {
		if tk.AssignedWorker != want[i] {
			t.Errorf("task %d: expected worker %d, got %d", tk.ID, want[i], tk.AssignedWorker)
		}
	}
}

func TestSJF_ThreeEqualTasksOnUnequalWorkers(t *testing.T) {
	// Workers of capacity 1 and 2, three tasks of cost 10 each. The first
	// dispatch ties at zero load and picks the lowest id; after that the
	// higher-capacity worker stays cheaper and takes the rest.
	o := newTestOrch(t, ShortestJobFirst, descsWithCaps(1, 2))

	tasks := []*task.Task{
		{ID: 1, Priority: 1, NominalCost: 10},
		{ID: 2, Priority: 1, NominalCost: 10},
		{ID: 3, Priority: 1, NominalCost: 10},
	}
	pushTasks(o, tasks...)

	for range tasks {
		o.dispatchNext()
	}

	want := []int{1, 2, 2}
	for i, tk := range tasks {
		if tk.AssignedWorker != want[i] {
			t.Errorf("task %d: expected worker %d, got %d", tk.ID, want[i], tk.AssignedWorker)
		}
	}

	// Load accounting: worker 1 holds 10/1, worker 2 holds 10/2 + 10/2.
	if got := o.loads.byID[1].accumulated; got != 10 {
		t.Errorf("worker 1 load: expected 10, got %v", got)
	}
	if got := o.loads.byID[2].accumulated; got != 10 {
		t.Errorf("worker 2 load: expected 10, got %v", got)
	}
	if o.loads.byID[2].pending != 2 {
		t.Errorf("worker 2 pending: expected 2, got %d", o.loads.byID[2].pending)
	}
}

func TestSJF_DispatchesCheapestFirst(t *testing.T) {
	o := newTestOrch(t, ShortestJobFirst, descsWithCaps(1))

	a := &task.Task{ID: 1, Priority: 1, NominalCost: 8}
	b := &task.Task{ID: 2, Priority: 1, NominalCost: 3}
	c := &task.Task{ID: 3, Priority: 1, NominalCost: 5}
	pushTasks(o, a, b, c)

	o.dispatchNext()
	if b.AssignedWorker != 1 || a.AssignedWorker == 1 {
		t.Errorf("expected the cost-3 task to be dispatched first")
	}
	o.dispatchNext()
	if c.AssignedWorker != 1 {
		t.Errorf("expected the cost-5 task to be dispatched second")
	}
}

func TestPriorityFirst_DispatchesMostUrgentFirst(t *testing.T) {
	o := newTestOrch(t, PriorityFirst, descsWithCaps(1))

	a := &task.Task{ID: 1, Priority: 3, NominalCost: 1}
	b := &task.Task{ID: 2, Priority: 1, NominalCost: 1}
	pushTasks(o, a, b)

	o.dispatchNext()
	if b.AssignedWorker != 1 {
		t.Errorf("expected the priority-1 task to be dispatched first")
	}
	if a.AssignedWorker == 1 {
		t.Errorf("priority-3 task dispatched too early")
	}
}

func TestDispatch_LoadConservation(t *testing.T) {
	o := newTestOrch(t, ShortestJobFirst, descsWithCaps(1, 2, 4))

	costs := []float64{3, 7, 2, 9, 1}
	tasks := make([]*task.Task, len(costs))
	for i, c := range costs {
		tasks[i] = &task.Task{ID: i + 1, Priority: 1, NominalCost: c}
	}
	pushTasks(o, tasks...)

	for range tasks {
		o.dispatchNext()
	}

	// Sum of accumulated load must equal the sum of cost/capacity over every
	// dispatched task, whatever the placement was.
	want := 0.0
	for _, tk := range tasks {
		want += tk.NominalCost / o.loads.capByID[tk.AssignedWorker]
	}
	if got := o.loads.totalAccumulated(); !almostEqual(got, want) {
		t.Errorf("total load: expected %v, got %v", want, got)
	}
}

func TestHandleCompleted_ReleasesLoadAndRecords(t *testing.T) {
	o := newTestOrch(t, RoundRobin, descsWithCaps(2))

	tk := &task.Task{ID: 7, Priority: 1, NominalCost: 4}
	pushTasks(o, tk)
	o.dispatchNext()

	tk.StartTime = 1.5
	tk.CompletionTime = 3.5
	tk.ArrivalTime = 1.0
	o.handleEvent(worker.Event{Kind: worker.Completed, WorkerID: 1, Task: tk, ActualDuration: 2})

	if o.completed != 1 {
		t.Fatalf("expected 1 completed, got %d", o.completed)
	}
	if got := o.loads.byID[1].accumulated; got != 0 {
		t.Errorf("expected load released to 0, got %v", got)
	}
	if o.loads.byID[1].pending != 0 {
		t.Errorf("expected pending 0, got %d", o.loads.byID[1].pending)
	}
	rec := o.records[0]
	if rec.Turnaround != 2.5 || rec.Waiting != 0.5 {
		t.Errorf("bad record: turnaround %v waiting %v", rec.Turnaround, rec.Waiting)
	}
}

func TestRelease_ClampsAtZero(t *testing.T) {
	o := newTestOrch(t, RoundRobin, descsWithCaps(1))

	o.loads.assign(1, 1)
	o.loads.byID[1].accumulated = 0.999999999 // simulate rounding drift
	o.loads.release(1, 1)

	if got := o.loads.byID[1].accumulated; got != 0 {
		t.Errorf("expected clamped load 0, got %v", got)
	}
}

func TestHandleMigrated_TransfersBookkeeping(t *testing.T) {
	// Worker 1 (cap 1) holds cost 4+2; worker 2 (cap 2) holds cost 2. A
	// migrated cost-2 task moves from 1 to 2: worker 1 loses 2/1, worker 2
	// gains 2/2.
	o := newTestOrch(t, ShortestJobFirst, descsWithCaps(1, 2))
	o.loads.assign(1, 4)
	o.loads.assign(1, 2)
	o.loads.assign(2, 2)

	tk := &task.Task{ID: 5, Priority: 2, NominalCost: 2, AssignedWorker: 1, Migrated: true}
	o.handleEvent(worker.Event{Kind: worker.Migrated, WorkerID: 1, Task: tk})

	if got := o.loads.byID[1].accumulated; !almostEqual(got, 4) {
		t.Errorf("worker 1 load: expected 4, got %v", got)
	}
	if got := o.loads.byID[2].accumulated; !almostEqual(got, 2) {
		t.Errorf("worker 2 load: expected 2, got %v", got)
	}
	if o.loads.byID[1].pending != 1 || o.loads.byID[2].pending != 2 {
		t.Errorf("pending counts: got %d and %d",
			o.loads.byID[1].pending, o.loads.byID[2].pending)
	}
	if tk.AssignedWorker != 2 {
		t.Errorf("expected reassignment to worker 2, got %d", tk.AssignedWorker)
	}
	if o.migrationEvents != 1 {
		t.Errorf("expected 1 migration event, got %d", o.migrationEvents)
	}
}

func TestAdmission_SeededDelaysAreReproducible(t *testing.T) {
	requests := []RequestSpec{
		{ID: 1, Kind: "a", Priority: 1, NominalCost: 2},
		{ID: 2, Kind: "b", Priority: 2, NominalCost: 4},
		{ID: 3, Kind: "c", Priority: 3, NominalCost: 6},
		{ID: 4, Kind: "d", Priority: 1, NominalCost: 8},
	}

	arrivals := func() []float64 {
		o, err := New(descsWithCaps(1, 1), Config{
			Policy:             ShortestJobFirst,
			MigrationThreshold: 1e9,
			Seed:               7,
		}, clock.NewManual())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		o.admit(requests)
		var ts []float64
		for _, tk := range o.pending {
			ts = append(ts, tk.ArrivalTime)
		}
		return ts
	}

	first, second := arrivals(), arrivals()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("arrival %d differs between seeded runs: %v vs %v", i, first[i], second[i])
		}
	}
	if first[0] != 0 {
		t.Errorf("first arrival should be immediate, got %v", first[0])
	}
	for i := 1; i < len(first); i++ {
		gap := first[i] - first[i-1]
		if gap < 0.1 || gap >= 1.5 {
			t.Errorf("inter-arrival gap %d out of [0.1, 1.5): %v", i, gap)
		}
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
