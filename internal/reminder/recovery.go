package reminder

import (
	"context"
	"time"

	logx "todobot/pkg/logx"
)

// Recover rebuilds the queue from persisted task deadlines after a
// restart. For every task that is not done, has a deadline, and has no
// fired marker, the reminder is re-armed at deadline minus offset. If that
// point was crossed while the process was down, the reminder fires
// immediately with an overdue note rather than being silently dropped.
//
// A store read failure aborts reconciliation (logged, returned) but must
// never crash the process; callers treat it as a degraded start.
//
// Call after Start().
func (s *Service) Recover(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	tasks, err := s.store.PendingReminders(ctx)
	if err != nil {
		s.log.Error("recovery read failed; skipping reminder reconciliation", logx.Err(err))
		return err
	}

	s.runMu.Lock()
	sup := s.sup
	s.runMu.Unlock()

	now := time.Now()
	scheduled, overdue := 0, 0
	for _, t := range tasks {
		if t.Deadline == nil {
			continue
		}
		fireAt := t.Deadline.Add(-s.cfg.Offset)
		if fireAt.After(now) {
			if err := s.Schedule(t.UserID, t.ID, t.Text, fireAt); err != nil {
				s.log.Warn("recovery schedule failed",
					logx.Int64("user", t.UserID), logx.Int64("task", t.ID), logx.Err(err))
				continue
			}
			scheduled++
			continue
		}

		// The process was down across the reminder point.
		job := &Job{
			Key:    Key{UserID: t.UserID, TaskID: t.ID},
			Text:   t.Text,
			FireAt: fireAt,
			State:  StateScheduled,
		}
		s.mu.Lock()
		s.cancelLocked(job.Key)
		s.jobs[job.Key] = job
		s.mu.Unlock()

		if sup != nil {
			sup.Go("deliver.overdue", func(c context.Context) {
				s.deliver(c, job, true)
			})
		} else {
			s.deliver(ctx, job, true)
		}
		overdue++
	}

	s.log.Info("reminder recovery complete",
		logx.Int("rearmed", scheduled), logx.Int("fired_overdue", overdue))
	return nil
}
