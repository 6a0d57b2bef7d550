package store

// Status is a document's correction lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether a status ends the current job attempt. A terminal
// document can be resubmitted, which starts a fresh pending cycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Valid reports whether s is one of the defined lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// CanTransition is the single source of truth for lifecycle moves. All status
// writes go through conditional updates guarded by this table.
//
//	pending     -> in-progress (claim), canceled (flag set before claim)
//	in-progress -> complete | failed | canceled | pending (claim released on shutdown)
//	terminal    -> pending (resubmission, rollback)
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusCanceled
	case StatusInProgress:
		return to == StatusComplete || to == StatusFailed || to == StatusCanceled || to == StatusPending
	case StatusComplete, StatusFailed, StatusCanceled:
		return to == StatusPending
	}
	return false
}
