package reminder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"todobot/internal/storage"
	logx "todobot/pkg/logx"
)

// fakeStore serves PendingReminders and records fired markers; the task
// CRUD surface is unused by the reminder service.
type fakeStore struct {
	mu      sync.Mutex
	pending []storage.Task
	readErr error
	fired   []Key
}

func (f *fakeStore) PendingReminders(ctx context.Context) ([]storage.Task, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.pending, nil
}

func (f *fakeStore) MarkReminderFired(ctx context.Context, userID, taskID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, Key{UserID: userID, TaskID: taskID})
	return true, nil
}

func (f *fakeStore) firedKeys() []Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Key(nil), f.fired...)
}

func (f *fakeStore) AddTask(context.Context, int64, string, string, *time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeStore) GetTasks(context.Context, int64) ([]storage.Task, error) { return nil, nil }
func (f *fakeStore) GetTask(context.Context, int64, int64) (storage.Task, bool, error) {
	return storage.Task{}, false, nil
}
func (f *fakeStore) MarkDone(context.Context, int64, int64) (bool, error)   { return false, nil }
func (f *fakeStore) DeleteTask(context.Context, int64, int64) (bool, error) { return false, nil }
func (f *fakeStore) ClearAll(context.Context, int64) (int64, error)         { return 0, nil }
func (f *fakeStore) SearchTasks(context.Context, int64, string) ([]storage.Task, error) {
	return nil, nil
}
func (f *fakeStore) SetDeadline(context.Context, int64, int64, *time.Time) (bool, error) {
	return false, nil
}
func (f *fakeStore) ActiveUsers(context.Context) ([]int64, error) { return nil, nil }
func (f *fakeStore) Close() error                                 { return nil }

func startServiceWithStore(t *testing.T, n *fakeNotifier, st storage.Store) *Service {
	t.Helper()
	s := New(Config{}, n, st, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		s.Stop(stopCtx)
	})
	return s
}

func TestRecoverReArmsFutureDeadline(t *testing.T) {
	t.Parallel()
	deadline := time.Now().Add(48 * time.Hour)
	st := &fakeStore{pending: []storage.Task{
		{ID: 11, UserID: 5, Text: "file report", Deadline: &deadline},
	}}
	n := &fakeNotifier{}
	s := startServiceWithStore(t, n, st)

	if err := s.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	j, ok := s.Lookup(5, 11)
	if !ok || j.State != StateScheduled {
		t.Fatalf("job after recover = %+v (ok=%v), want scheduled", j, ok)
	}
	want := deadline.Add(-24 * time.Hour)
	if !j.FireAt.Equal(want) {
		t.Fatalf("FireAt = %v, want deadline-24h = %v", j.FireAt, want)
	}
	if n.callCount() != 0 {
		t.Fatalf("notifier called during recover of a future deadline")
	}
}

func TestRecoverFiresOverdueImmediately(t *testing.T) {
	t.Parallel()
	// Deadline is tomorrow-ish: the reminder point (deadline-24h) already
	// passed while the process was "down".
	deadline := time.Now().Add(2 * time.Hour)
	st := &fakeStore{pending: []storage.Task{
		{ID: 3, UserID: 9, Text: "pay rent", Deadline: &deadline},
	}}
	n := &fakeNotifier{}
	s := startServiceWithStore(t, n, st)

	if err := s.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return n.callCount() == 1 }) {
		t.Fatalf("overdue reminder was not delivered")
	}
	c := n.call(0)
	if c.UserID != 9 || !strings.Contains(c.Text, "pay rent") {
		t.Fatalf("unexpected delivery: %+v", c)
	}
	if !strings.Contains(c.Text, "imminent or already passed") {
		t.Fatalf("overdue delivery lacks the overdue note: %q", c.Text)
	}

	if !waitFor(t, time.Second, func() bool { return len(st.firedKeys()) == 1 }) {
		t.Fatalf("fired marker not persisted")
	}
	if got := st.firedKeys()[0]; got != (Key{UserID: 9, TaskID: 3}) {
		t.Fatalf("fired marker for %+v", got)
	}
}

func TestRecoverStoreFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	st := &fakeStore{readErr: errors.New("disk gone")}
	n := &fakeNotifier{}
	s := startServiceWithStore(t, n, st)

	if err := s.Recover(context.Background()); err == nil {
		t.Fatalf("Recover = nil, want read error surfaced")
	}
	if n.callCount() != 0 {
		t.Fatalf("notifier called after failed recovery read")
	}

	// The service keeps working after a failed recovery.
	if err := s.Schedule(1, 1, "still alive", time.Now().Add(50*time.Millisecond)); err != nil {
		t.Fatalf("Schedule after failed recover: %v", err)
	}
	if !waitFor(t, time.Second, func() bool { return n.callCount() == 1 }) {
		t.Fatalf("engine dead after failed recovery")
	}
}

func TestFiredJobPersistsMarker(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	n := &fakeNotifier{}
	s := startServiceWithStore(t, n, st)

	if err := s.Schedule(4, 8, "ship it", time.Now().Add(50*time.Millisecond)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !waitFor(t, time.Second, func() bool { return len(st.firedKeys()) == 1 }) {
		t.Fatalf("fired marker not persisted after normal fire")
	}
}
