package tasks

import "fmt"

// ProgressUpdate represents a progress event during a job run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	FetchBatch Phase = iota
	ResolveTrack
	FlushBatch
	Pause
	CycleDone
)

func (p Phase) String() string {
	switch p {
	case FetchBatch:
		return "fetch_batch"
	case ResolveTrack:
		return "resolve_track"
	case FlushBatch:
		return "flush_batch"
	case Pause:
		return "pause"
	case CycleDone:
		return "cycle_done"
	default:
		return ""
	}
}

func fetchBatchUpdate(limit int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchBatch,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching up to %d tracks...", limit),
	}
}

func resolveTrackUpdate(step, total int, trackID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving %s...", step, total, trackID),
	}
}

func flushBatchUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FlushBatch,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Submitting batch of %d updates...", count),
	}
}

func pauseUpdate(reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Pause,
		Step:    1,
		Total:   1,
		Message: reason,
	}
}

func cycleDoneUpdate(sent int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CycleDone,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Cycle done: %d updates sent", sent),
	}
}
