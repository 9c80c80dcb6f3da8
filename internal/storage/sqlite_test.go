package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "todobot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "tasks.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func date(y int, m time.Month, d int) *time.Time {
	v := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return &v
}

func TestAddAndGetTasks(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id1, err := st.AddTask(ctx, 1, "buy milk", "home", nil)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	id2, err := st.AddTask(ctx, 1, "file report", "", date(2026, 9, 1))
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("ids not monotonic: %d then %d", id1, id2)
	}

	tasks, err := st.GetTasks(ctx, 1)
	if err != nil {
		t.Fatalf("GetTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].ID != id1 || tasks[1].ID != id2 {
		t.Fatalf("tasks not ordered by id: %+v", tasks)
	}
	if tasks[0].Category != "home" || tasks[0].Deadline != nil || tasks[0].Done {
		t.Fatalf("task 1 fields wrong: %+v", tasks[0])
	}
	if tasks[1].Deadline == nil || !tasks[1].Deadline.Equal(*date(2026, 9, 1)) {
		t.Fatalf("task 2 deadline wrong: %+v", tasks[1])
	}
}

func TestUserIsolation(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	idA, _ := st.AddTask(ctx, 100, "alice task", "", nil)
	if _, err := st.AddTask(ctx, 200, "bob task", "", nil); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	tasks, err := st.GetTasks(ctx, 100)
	if err != nil {
		t.Fatalf("GetTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Text != "alice task" {
		t.Fatalf("user 100 sees %+v", tasks)
	}

	// Cross-user mutations must not find the task.
	if ok, _ := st.MarkDone(ctx, 200, idA); ok {
		t.Fatalf("user 200 marked user 100's task done")
	}
	if ok, _ := st.DeleteTask(ctx, 200, idA); ok {
		t.Fatalf("user 200 deleted user 100's task")
	}
	if n, _ := st.ClearAll(ctx, 200); n != 1 {
		t.Fatalf("ClearAll(200) removed %d, want 1", n)
	}
	if tasks, _ = st.GetTasks(ctx, 100); len(tasks) != 1 {
		t.Fatalf("ClearAll(200) touched user 100's tasks")
	}
}

func TestMarkDoneAndDelete(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, _ := st.AddTask(ctx, 1, "x", "", nil)

	ok, err := st.MarkDone(ctx, 1, id)
	if err != nil || !ok {
		t.Fatalf("MarkDone = %v, %v", ok, err)
	}
	tasks, _ := st.GetTasks(ctx, 1)
	if !tasks[0].Done {
		t.Fatalf("task not done after MarkDone")
	}

	if ok, _ := st.MarkDone(ctx, 1, 999); ok {
		t.Fatalf("MarkDone on absent id = true")
	}

	if ok, _ := st.DeleteTask(ctx, 1, id); !ok {
		t.Fatalf("DeleteTask = false")
	}
	if ok, _ := st.DeleteTask(ctx, 1, id); ok {
		t.Fatalf("second DeleteTask = true")
	}
}

func TestSearchTasks(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	_, _ = st.AddTask(ctx, 1, "Buy milk", "", nil)
	_, _ = st.AddTask(ctx, 1, "buy bread", "", nil)
	_, _ = st.AddTask(ctx, 1, "call mom", "", nil)
	_, _ = st.AddTask(ctx, 1, "100% done", "", nil)

	got, err := st.SearchTasks(ctx, 1, "buy")
	if err != nil {
		t.Fatalf("SearchTasks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("search 'buy' found %d, want 2 (case-insensitive)", len(got))
	}

	// LIKE metacharacters are literals.
	got, err = st.SearchTasks(ctx, 1, "100%")
	if err != nil {
		t.Fatalf("SearchTasks: %v", err)
	}
	if len(got) != 1 || got[0].Text != "100% done" {
		t.Fatalf("search '100%%' found %+v", got)
	}
}

func TestPendingRemindersAndFiredMarker(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	withDeadline, _ := st.AddTask(ctx, 1, "due soon", "", date(2026, 6, 1))
	_, _ = st.AddTask(ctx, 1, "no deadline", "", nil)
	doneID, _ := st.AddTask(ctx, 2, "done", "", date(2026, 6, 2))
	_, _ = st.MarkDone(ctx, 2, doneID)

	pending, err := st.PendingReminders(ctx)
	if err != nil {
		t.Fatalf("PendingReminders: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != withDeadline {
		t.Fatalf("pending = %+v, want only the open task with a deadline", pending)
	}

	if ok, err := st.MarkReminderFired(ctx, 1, withDeadline); err != nil || !ok {
		t.Fatalf("MarkReminderFired = %v, %v", ok, err)
	}
	if pending, _ = st.PendingReminders(ctx); len(pending) != 0 {
		t.Fatalf("fired task still pending: %+v", pending)
	}

	if ok, _ := st.MarkReminderFired(ctx, 1, 999); ok {
		t.Fatalf("MarkReminderFired on absent task = true")
	}
}

func TestSetDeadlineResetsFiredMarker(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	id, _ := st.AddTask(ctx, 1, "moving target", "", date(2026, 6, 1))
	_, _ = st.MarkReminderFired(ctx, 1, id)

	if ok, err := st.SetDeadline(ctx, 1, id, date(2026, 7, 1)); err != nil || !ok {
		t.Fatalf("SetDeadline = %v, %v", ok, err)
	}

	pending, _ := st.PendingReminders(ctx)
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("rescheduled task not pending again: %+v", pending)
	}
	if !pending[0].Deadline.Equal(*date(2026, 7, 1)) {
		t.Fatalf("deadline = %v, want 2026-07-01", pending[0].Deadline)
	}
}

func TestClosedStoreReturnsErrClosed(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.AddTask(ctx, 1, "x", "", nil); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := st.GetTasks(ctx, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("GetTasks after Close = %v, want ErrClosed", err)
	}
	if _, err := st.AddTask(ctx, 1, "y", "", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("AddTask after Close = %v, want ErrClosed", err)
	}
	if _, err := st.PendingReminders(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("PendingReminders after Close = %v, want ErrClosed", err)
	}
	if _, err := st.MarkReminderFired(ctx, 1, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("MarkReminderFired after Close = %v, want ErrClosed", err)
	}
}

func TestActiveUsers(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	_, _ = st.AddTask(ctx, 10, "a", "", nil)
	_, _ = st.AddTask(ctx, 10, "b", "", nil)
	_, _ = st.AddTask(ctx, 20, "c", "", nil)
	doneID, _ := st.AddTask(ctx, 30, "d", "", nil)
	_, _ = st.MarkDone(ctx, 30, doneID)

	users, err := st.ActiveUsers(ctx)
	if err != nil {
		t.Fatalf("ActiveUsers: %v", err)
	}
	if len(users) != 2 || users[0] != 10 || users[1] != 20 {
		t.Fatalf("ActiveUsers = %v, want [10 20]", users)
	}
}
