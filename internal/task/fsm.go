package task

// legalTransitions enumerates the edges of the state machine in spec.md §3.
// The actual mutations happen in the storage adapter's atomic SQL, which
// encodes these edges directly; the scheduler and worker paths do not
// call CanTransition before writing.
var legalTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning: true,
		StatusPaused:  true,
	},
	StatusRunning: {
		StatusCompleted:         true,
		StatusPending:           true, // retry, or cron reschedule
		StatusPermanentlyFailed: true,
	},
	StatusPaused: {
		StatusPending: true,
	},
}

// CanTransition reports whether moving a task from `from` to `to` is a
// legal edge of the FSM.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	edges, ok := legalTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}
