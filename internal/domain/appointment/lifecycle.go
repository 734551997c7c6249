package appointment

import (
	"github.com/careline/careline/internal/platform/apperr"
)

// TransitionOptions modifies Transition.
type TransitionOptions struct {
	// Force permits any move between valid statuses. Only administrators
	// may set it.
	Force bool
}

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCancelled: true,
	StatusCompleted: true,
}

var allowedTransitions = map[string]map[string]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCancelled: true, StatusCompleted: true},
}

// IsTerminal reports whether no further transition leaves status.
func IsTerminal(status string) bool {
	return status == StatusCancelled || status == StatusCompleted
}

// ValidStatus reports whether status is one of the four known statuses.
func ValidStatus(status string) bool {
	return validStatuses[status]
}

// Transition decides whether an appointment in status from may move to
// status to. Every status change goes through it.
func Transition(from, to string, opts TransitionOptions) error {
	if !ValidStatus(to) {
		return apperr.Validation("invalid status: %q", to)
	}
	if opts.Force {
		return nil
	}
	if IsTerminal(from) {
		return apperr.Conflict("appointment is %s and can no longer change", from)
	}
	if from == to {
		return nil
	}
	if !allowedTransitions[from][to] {
		return apperr.Conflict("cannot move appointment from %s to %s", from, to)
	}
	return nil
}
