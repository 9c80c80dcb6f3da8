package reminder

import (
	"errors"
	"time"
)

// ErrInvalidTime is returned by Schedule when the fire time is not
// strictly in the future.
var ErrInvalidTime = errors.New("reminder: fire time is not in the future")

// Key identifies a reminder: a user has at most one active reminder per task.
type Key struct {
	UserID int64
	TaskID int64
}

type State int

const (
	StateScheduled State = iota
	StateFired
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateScheduled:
		return "scheduled"
	case StateFired:
		return "fired"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job is one pending notification. Text is the task text snapshot taken at
// scheduling time; editing the task afterwards does not change what the
// reminder says.
type Job struct {
	Key    Key
	Text   string
	FireAt time.Time
	State  State
}

// Config controls the reminder service.
type Config struct {
	// Offset is how long before a task's deadline the reminder fires.
	// Default 24h ("tomorrow is the last day").
	Offset time.Duration
}

func (c Config) withDefaults() Config {
	if c.Offset <= 0 {
		c.Offset = 24 * time.Hour
	}
	return c
}
