package model

import "fmt"

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
}

// Request lifecycle: queued → processing → completed|failed.
// No transition skips a state; terminal states have no exits.
var validTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusProcessing: true,
		// TTL sweep evicts abandoned queued items straight to failed
		StatusFailed: true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

func ValidateTransition(from, to Status) error {
	if IsTerminal(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("unknown status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition: %q → %q", from, to)
	}
	return nil
}
