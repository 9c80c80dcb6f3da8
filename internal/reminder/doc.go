// Package reminder schedules and delivers one-shot deadline reminders.
//
// The Service keeps at most one active job per (user, task) pair in a
// time-ordered queue; a single engine goroutine sleeps until the earliest
// fire time and hands due jobs to per-job delivery goroutines. Scheduling
// an earlier job interrupts the current sleep, so a late-arriving earlier
// reminder still fires on time.
//
// Delivery is best-effort and single-attempt: a failed send is logged and
// the job is finalized as Fired either way. Recover() re-arms the queue
// from persisted task deadlines after a restart.
package reminder
