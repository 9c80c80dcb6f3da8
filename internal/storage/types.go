package storage

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by every Store operation after Close.
var ErrClosed = errors.New("storage closed")

// Config configures the SQLite task store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default (5s)
}

// Task is one user-owned to-do item.
//
// Deadline is a calendar date (stored as YYYY-MM-DD, interpreted in the
// process-local timezone). ReminderFired records that the deadline
// reminder for this task has already been delivered, so a restart does
// not deliver it again.
type Task struct {
	ID            int64
	UserID        int64
	Text          string
	Category      string // empty when unset
	Done          bool
	Deadline      *time.Time // nil when unset
	ReminderFired bool
}

// Store is the persistence API consumed by the command front-end and the
// reminder recovery pass. Every user-facing operation is isolated per
// user_id; no call exposes another user's tasks.
type Store interface {
	AddTask(ctx context.Context, userID int64, text, category string, deadline *time.Time) (int64, error)
	GetTasks(ctx context.Context, userID int64) ([]Task, error)
	GetTask(ctx context.Context, userID, taskID int64) (Task, bool, error)
	MarkDone(ctx context.Context, userID, taskID int64) (bool, error)
	DeleteTask(ctx context.Context, userID, taskID int64) (bool, error)
	ClearAll(ctx context.Context, userID int64) (int64, error)
	SearchTasks(ctx context.Context, userID int64, keyword string) ([]Task, error)

	// SetDeadline replaces the task's deadline (nil clears it) and resets
	// the fired marker so the new deadline gets its own reminder.
	SetDeadline(ctx context.Context, userID, taskID int64, deadline *time.Time) (bool, error)

	// MarkReminderFired records the "already fired" marker consulted by
	// recovery. Soft not-found: (false, nil) when the task is gone.
	MarkReminderFired(ctx context.Context, userID, taskID int64) (bool, error)

	// PendingReminders returns every task that is not done, has a
	// deadline, and has not had its reminder fired yet (recovery feed).
	PendingReminders(ctx context.Context) ([]Task, error)

	// ActiveUsers returns the distinct users that have open tasks
	// (daily digest feed).
	ActiveUsers(ctx context.Context) ([]int64, error)

	Close() error
}
