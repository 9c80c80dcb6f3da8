package reminder

import (
	"context"
	"fmt"
	"time"

	logx "todobot/pkg/logx"
)

func reminderText(job *Job, overdue bool) string {
	if overdue {
		return fmt.Sprintf("Reminder: task '%s' (ID: %d) deadline is imminent or already passed!", job.Text, job.Key.TaskID)
	}
	return fmt.Sprintf("Reminder: task '%s' (ID: %d) is approaching its deadline! Tomorrow is the last day.", job.Text, job.Key.TaskID)
}

// deliver is the delivery executor: one Notify attempt, then finalize.
// Delivery is best-effort; a failed send is logged and the job still
// transitions to Fired, never retried. Key and Text are immutable after
// creation, so reading them without the lock is safe.
func (s *Service) deliver(ctx context.Context, job *Job, overdue bool) {
	err := s.notifier.Notify(ctx, job.Key.UserID, reminderText(job, overdue))
	if err != nil {
		s.log.Warn("reminder delivery failed",
			logx.Int64("user", job.Key.UserID),
			logx.Int64("task", job.Key.TaskID),
			logx.Err(err),
		)
	} else {
		s.log.Info("reminder delivered",
			logx.Int64("user", job.Key.UserID),
			logx.Int64("task", job.Key.TaskID),
		)
	}
	s.finalize(job)
}

// finalize marks the delivered job Fired and best-effort persists the
// fired marker. The registry entry is matched by pointer, not key: the
// job may have been cancelled or replaced by a new Schedule while the
// delivery was in flight, and a replacement job must never be finalized
// (or have its marker persisted) on the old delivery's behalf.
func (s *Service) finalize(job *Job) {
	key := job.Key
	s.mu.Lock()
	fired := s.jobs[key] == job && job.State == StateScheduled
	if fired {
		job.State = StateFired
	}
	s.mu.Unlock()

	if !fired {
		s.log.Debug("job cancelled or replaced mid-flight; skipping finalize",
			logx.Int64("user", key.UserID), logx.Int64("task", key.TaskID))
		return
	}

	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.store.MarkReminderFired(ctx, key.UserID, key.TaskID); err != nil {
		s.log.Warn("failed persisting fired marker",
			logx.Int64("user", key.UserID), logx.Int64("task", key.TaskID), logx.Err(err))
	}
}
