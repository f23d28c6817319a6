package core

// Policy selects how the orchestrator orders the pending queue and picks a
// destination worker. Fixed for the length of a run.
type Policy string

const (
	// RoundRobin keeps arrival order and cycles destinations over the
	// configured worker list, ignoring load entirely. Deliberately the dumb
	// baseline the other two policies are measured against.
	RoundRobin Policy = "RR"
	// ShortestJobFirst orders the pending queue by nominal cost and sends
	// the head to the least-loaded worker.
	ShortestJobFirst Policy = "SJF"
	// PriorityFirst orders the pending queue by priority (1 is most urgent)
	// and sends the head to the least-loaded worker.
	PriorityFirst Policy = "PRIORIDADE"
)

// ParsePolicy maps a policy string to a Policy. Unknown strings are not an
// error: the fleet falls back to round robin and the caller is expected to
// log the fallback.
func ParsePolicy(s string) (Policy, bool) {
	switch Policy(s) {
	case RoundRobin, ShortestJobFirst, PriorityFirst:
		return Policy(s), true
	default:
		return RoundRobin, false
	}
}

func (p Policy) String() string {
	return string(p)
}
