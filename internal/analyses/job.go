package analyses

import "encoding/json"

// State is the orchestrator's view of a remote job.
type State string

const (
	StateSubmitted State = "submitted"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
	StateNotFound  State = "not_found"
	StateTimedOut  State = "timed_out"
)

// Terminal reports whether polling stops at this state.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled, StateNotFound, StateTimedOut:
		return true
	default:
		return false
	}
}

// Job tracks one submitted operation for the lifetime of a request.
type Job struct {
	// Handle is the polling locator, used verbatim.
	Handle      string
	OperationID string
	Model       ModelID
	Format      Format
	State       State
	Attempts    int
	// RemoteStatus is the last status field reported by the service.
	RemoteStatus string
	// Payload is the last poll body, kept for diagnostics.
	Payload json.RawMessage
	Result  *Result
}

// Result is set only on succeeded jobs.
type Result struct {
	Raw     json.RawMessage
	Content *string
	Pages   json.RawMessage
}
