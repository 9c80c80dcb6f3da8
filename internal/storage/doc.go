// Package storage persists per-user tasks in SQLite.
//
// It owns the task records; the reminder subsystem only references them by
// (user_id, task_id) and never mutates task rows except for the
// reminder_fired marker.
package storage
