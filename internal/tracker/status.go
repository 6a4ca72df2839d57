package tracker

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a Tracker.
type State int

const (
	// StateIdle means no loop is running.
	StateIdle State = iota
	// StateRunning means the loop is running and the last cycle succeeded.
	StateRunning
	// StateFaulted means the loop is running but the last cycle failed.
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFaulted:
		return "faulted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is a point-in-time snapshot of a Tracker.
type Status struct {
	State     State
	Line      string
	LastError string
	Pending   int
	Responded int
	Cycles    uint64
	Migrated  int
	LastCheck time.Time
	// Uncommitted counts contacts whose migration is still waiting to be written.
	Uncommitted int
}

// Active reports whether the tracking loop is running, faulted or not.
func (s Status) Active() bool {
	return s.State != StateIdle
}

// Label returns "Active" or "Inactive".
func (s Status) Label() string {
	if s.Active() {
		return "Active"
	}
	return "Inactive"
}

// CycleResult describes one completed check.
type CycleResult struct {
	Cycle     uint64
	Senders   int
	Migrated  []string
	Remaining int
	Line      string
}

func noRepliesLine(pending int) string {
	return fmt.Sprintf("No new replies; %d pending", pending)
}

func migratedLine(migrated, pending int) string {
	return fmt.Sprintf("Migrated %d contact(s) to responded; %d remaining", migrated, pending)
}

func errorLine(err error) string {
	return "Error: " + err.Error()
}
