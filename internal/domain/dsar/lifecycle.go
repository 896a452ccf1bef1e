package dsar

import (
	"strings"
	"time"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusCompleted, StatusRejected},
}

func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// TransitionInput carries the data a transition may need.
type TransitionInput struct {
	Reason string
	Result *ProcessingResult
	Actor  string
}

// Transition returns a copy of r moved to status to, with the lifecycle
// timestamps stamped. r itself is never modified.
func Transition(r Request, to Status, in TransitionInput, now time.Time) (Request, error) {
	if !CanTransition(r.Status, to) {
		return r, ErrInvalidTransition
	}

	next := r
	ts := now.UTC()
	switch to {
	case StatusInProgress:
		next.ProcessingStartedAt = &ts
		if in.Actor != "" && next.AssignedTo == "" {
			next.AssignedTo = in.Actor
		}
	case StatusCompleted:
		next.CompletedAt = &ts
		next.ProcessingResult = in.Result
	case StatusRejected:
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			reason = "rejected"
		}
		next.FailedAt = &ts
		next.FailureReason = reason
	}
	next.Status = to
	next.UpdatedAt = ts
	return next, nil
}
