package reminder

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"todobot/internal/notify"
	rtsup "todobot/internal/runtime/supervisor"
	"todobot/internal/storage"
	logx "todobot/pkg/logx"
)

// Service is the reminder registry and timer engine.
//
// It owns the map of jobs keyed by (user, task) and a time-ordered queue
// of the pending ones. A single engine goroutine sleeps until the earliest
// fire time and dispatches due jobs; Schedule/Cancel/Lookup are safe to
// call concurrently from command handlers. The mutex is held for
// structural changes only, never across a Notify call.
type Service struct {
	mu    sync.Mutex
	jobs  map[Key]*Job       // all jobs, including last terminal state per key
	items map[Key]*queueItem // heap entries for Scheduled jobs only
	queue jobQueue
	seq   uint64

	// wake interrupts the engine's sleep when the earliest pending fire
	// time may have changed.
	wake chan struct{}

	cfg      Config
	notifier notify.Notifier
	store    storage.Store // fired-marker persistence; may be nil in tests
	log      logx.Logger

	runMu   sync.Mutex
	sup     *rtsup.Supervisor
	running bool
}

func New(cfg Config, notifier notify.Notifier, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		jobs:     map[Key]*Job{},
		items:    map[Key]*queueItem{},
		wake:     make(chan struct{}, 1),
		cfg:      cfg.withDefaults(),
		notifier: notifier,
		store:    store,
		log:      log,
	}
}

// Offset is the configured deadline-to-reminder distance.
func (s *Service) Offset() time.Duration { return s.cfg.Offset }

// Start launches the engine loop. Idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	sup := rtsup.New(ctx, rtsup.WithLogger(s.log))
	s.sup = sup
	sup.Go("engine", func(c context.Context) { s.run(c, sup) })
	s.log.Info("reminder engine started", logx.Duration("offset", s.cfg.Offset))
}

// Stop cancels the engine and waits for in-flight deliveries (bounded by ctx).
func (s *Service) Stop(ctx context.Context) {
	s.runMu.Lock()
	sup := s.sup
	s.sup = nil
	wasRunning := s.running
	s.running = false
	s.runMu.Unlock()

	if !wasRunning || sup == nil {
		return
	}
	if err := sup.Stop(ctx); err != nil {
		s.log.Warn("reminder stop timed out", logx.Err(err))
		return
	}
	s.log.Info("reminder engine stopped")
}

// Schedule registers a reminder for (userID, taskID), replacing any
// existing non-terminal job for the same key. fireAt must be strictly in
// the future.
func (s *Service) Schedule(userID, taskID int64, text string, fireAt time.Time) error {
	if !fireAt.After(time.Now()) {
		return ErrInvalidTime
	}

	job := &Job{
		Key:    Key{UserID: userID, TaskID: taskID},
		Text:   text,
		FireAt: fireAt,
		State:  StateScheduled,
	}

	s.mu.Lock()
	s.cancelLocked(job.Key)
	s.jobs[job.Key] = job
	s.seq++
	it := &queueItem{job: job, seq: s.seq}
	s.items[job.Key] = it
	heap.Push(&s.queue, it)
	isHead := s.queue[0] == it
	s.mu.Unlock()

	// Wake the engine when the new job becomes the earliest, so a long
	// sleep set before this job arrived doesn't delay it.
	if isHead {
		s.signalWake()
	}

	s.log.Debug("reminder scheduled",
		logx.Int64("user", userID), logx.Int64("task", taskID), logx.Time("fire_at", fireAt))
	return nil
}

// Cancel marks the job for (userID, taskID) cancelled and removes it from
// the queue. It reports whether a non-terminal job existed; calling it for
// an absent or already-terminal key is a no-op, never an error, so task
// delete/done paths can call it unconditionally.
func (s *Service) Cancel(userID, taskID int64) bool {
	key := Key{UserID: userID, TaskID: taskID}
	s.mu.Lock()
	ok := s.cancelLocked(key)
	s.mu.Unlock()
	if ok {
		s.log.Debug("reminder cancelled", logx.Int64("user", userID), logx.Int64("task", taskID))
	}
	return ok
}

// CancelUser cancels every scheduled reminder belonging to userID and
// reports how many were cancelled. Bulk task deletion uses this instead
// of per-id cancels, so reminders armed between the caller's store reads
// are still caught.
func (s *Service) CancelUser(userID int64) int {
	s.mu.Lock()
	n := 0
	for key, j := range s.jobs {
		if key.UserID != userID || j.State != StateScheduled {
			continue
		}
		if s.cancelLocked(key) {
			n++
		}
	}
	s.mu.Unlock()
	if n > 0 {
		s.log.Debug("user reminders cancelled", logx.Int64("user", userID), logx.Int("count", n))
	}
	return n
}

// cancelLocked transitions the key's job to Cancelled if it is
// non-terminal. The engine tolerates the head item disappearing, so no
// wake is needed here; the sleep simply expires and recomputes.
func (s *Service) cancelLocked(key Key) bool {
	j, ok := s.jobs[key]
	if !ok || j.State != StateScheduled {
		return false
	}
	j.State = StateCancelled
	if it, ok := s.items[key]; ok {
		if it.idx >= 0 {
			heap.Remove(&s.queue, it.idx)
		}
		delete(s.items, key)
	}
	return true
}

// Lookup returns a copy of the current job for (userID, taskID).
func (s *Service) Lookup(userID, taskID int64) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[Key{UserID: userID, TaskID: taskID}]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (s *Service) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the engine loop: sleep until the earliest pending fire time,
// pop everything due, dispatch each delivery in its own goroutine, repeat.
func (s *Service) run(ctx context.Context, sup *rtsup.Supervisor) {
	for {
		now := time.Now()

		s.mu.Lock()
		due := s.popDueLocked(now)
		var wait time.Duration = -1
		if len(s.queue) > 0 {
			wait = s.queue[0].job.FireAt.Sub(now)
		}
		s.mu.Unlock()

		for _, job := range due {
			job := job
			sup.Go("deliver", func(c context.Context) {
				s.deliver(c, job, false)
			})
		}
		if len(due) > 0 {
			// Recompute immediately; dispatching may have taken time.
			continue
		}

		var timerC <-chan time.Time
		var timer *time.Timer
		if wait >= 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
			if timer != nil && !timer.Stop() {
				<-timer.C
			}
		case <-timerC:
		}
	}
}

// popDueLocked removes and returns all jobs whose fire time has passed,
// in (FireAt, insertion) order. Popped jobs stay in the jobs map as
// Scheduled until the executor finalizes them; finalize matches the
// registry entry by pointer, so a job replaced mid-delivery is left to
// the replacement.
func (s *Service) popDueLocked(now time.Time) []*Job {
	var due []*Job
	for len(s.queue) > 0 && !s.queue[0].job.FireAt.After(now) {
		it := heap.Pop(&s.queue).(*queueItem)
		delete(s.items, it.job.Key)
		due = append(due, it.job)
	}
	return due
}
