package engine

// State is the lifecycle phase of a crawl run. Transitions only move
// forward: Idle -> Seeding -> Running -> Draining -> Terminated.
type State int

const (
	// StateIdle is the state before Run is called.
	StateIdle State = iota

	// StateSeeding means seed URLs are being normalized and enqueued.
	StateSeeding

	// StateRunning means workers are fetching and results are flowing.
	StateRunning

	// StateDraining means no new fetches start; in-flight fetches are
	// allowed to finish and their results are still processed.
	StateDraining

	// StateTerminated is the final state; the report is complete.
	StateTerminated
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeding:
		return "seeding"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
