package metrics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jpamaralw/bsb-compute-project/fleet/task"
)

// Summary is the post-run aggregation over the completed-task records.
type Summary struct {
	Policy         string
	TotalTime      float64 // total simulated duration of the run
	CompletedCount int
	MeanTurnaround float64
	MaxWaiting     float64
	Throughput     float64 // completed tasks per simulated second
	Utilization    float64 // percent, clamped to 100
	// MigratedCompleted counts completed tasks carrying the migrated flag.
	// MigrationEvents is the orchestrator's raw counter; the two can differ
	// when a migrated task had not completed by report time.
	MigratedCompleted int
	MigrationEvents   int
}

// Summarize computes the run summary from the completed-task records.
// totalCapacity is the summed capacity of every configured worker.
func Summarize(records []task.Record, policy string, totalTime, totalCapacity float64, migrationEvents int) Summary {
	s := Summary{
		Policy:          policy,
		TotalTime:       totalTime,
		CompletedCount:  len(records),
		MigrationEvents: migrationEvents,
	}
	if len(records) == 0 {
		return s
	}

	turnarounds := make([]float64, len(records))
	waits := make([]float64, len(records))
	busy := 0.0
	for i, r := range records {
		turnarounds[i] = r.Turnaround
		waits[i] = r.Waiting
		busy += r.ActualDuration
		if r.Migrated {
			s.MigratedCompleted++
		}
	}

	s.MeanTurnaround = stat.Mean(turnarounds, nil)
	s.MaxWaiting = floats.Max(waits)
	if totalTime > 0 {
		s.Throughput = float64(len(records)) / totalTime
		if totalCapacity > 0 {
			util := busy / (totalTime * totalCapacity)
			if util > 1 {
				util = 1
			}
			s.Utilization = util * 100
		}
	}
	return s
}

// String renders the final console block.
func (s Summary) String() string {
	rule := strings.Repeat("=", 40)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "BSB Compute run summary\n")
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Policy:                 %s\n", s.Policy)
	fmt.Fprintf(&b, "Total simulation time:  %.2fs\n", s.TotalTime)
	fmt.Fprintf(&b, "Completed tasks:        %d\n", s.CompletedCount)
	fmt.Fprintf(&b, "Mean turnaround:        %.2fs\n", s.MeanTurnaround)
	fmt.Fprintf(&b, "Max waiting time:       %.2fs\n", s.MaxWaiting)
	fmt.Fprintf(&b, "Throughput:             %.2f tasks/s\n", s.Throughput)
	fmt.Fprintf(&b, "Mean CPU utilization:   %.2f%%\n", s.Utilization)
	fmt.Fprintf(&b, "Migrations:             %d events, %d completed migrated\n",
		s.MigrationEvents, s.MigratedCompleted)
	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}
