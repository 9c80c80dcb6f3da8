package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "todobot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const dateLayout = "2006-01-02"

type sqliteStore struct {
	db     *sql.DB
	log    logx.Logger
	closed atomic.Bool
}

// conn gates every operation so callers get ErrClosed, not the driver's
// generic error, after Close.
func (s *sqliteStore) conn() (*sql.DB, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Open initializes the SQLite task store, creating the database file and
// schema if needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// Close shuts the store down. Idempotent; later calls are no-ops.
func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AddTask(ctx context.Context, userID int64, text, category string, deadline *time.Time) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO tasks(user_id, task_text, category, deadline) VALUES(?,?,?,?)`,
		userID, text, nullStr(category), nullDate(deadline),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const taskCols = `id, user_id, task_text, category, done, deadline, reminder_fired`

func (s *sqliteStore) GetTasks(ctx context.Context, userID int64) ([]Task, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *sqliteStore) GetTask(ctx context.Context, userID, taskID int64) (Task, bool, error) {
	db, err := s.conn()
	if err != nil {
		return Task{}, false, err
	}
	row := db.QueryRowContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, err
	}
	return t, true, nil
}

func (s *sqliteStore) MarkDone(ctx context.Context, userID, taskID int64) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE tasks SET done = 1 WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) DeleteTask(ctx context.Context, userID, taskID int64) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) ClearAll(ctx context.Context, userID int64) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) SearchTasks(ctx context.Context, userID int64, keyword string) ([]Task, error) {
	// Case-insensitive substring match. Escape LIKE metacharacters so a
	// literal "%" in the keyword doesn't match everything.
	pattern := "%" + escapeLike(keyword) + "%"
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE user_id = ? AND task_text LIKE ? ESCAPE '\' ORDER BY id`,
		userID, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *sqliteStore) SetDeadline(ctx context.Context, userID, taskID int64, deadline *time.Time) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE tasks SET deadline = ?, reminder_fired = 0 WHERE id = ? AND user_id = ?`,
		nullDate(deadline), taskID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) MarkReminderFired(ctx context.Context, userID, taskID int64) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE tasks SET reminder_fired = 1 WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) PendingReminders(ctx context.Context) ([]Task, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks
		 WHERE done = 0 AND reminder_fired = 0 AND deadline IS NOT NULL
		 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *sqliteStore) ActiveUsers(ctx context.Context) ([]int64, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM tasks WHERE done = 0 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// ---- scanning helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (Task, error) {
	var (
		t        Task
		category sql.NullString
		done     int64
		deadline sql.NullString
		fired    int64
	)
	if err := r.Scan(&t.ID, &t.UserID, &t.Text, &category, &done, &deadline, &fired); err != nil {
		return Task{}, err
	}
	t.Category = category.String
	t.Done = done != 0
	t.ReminderFired = fired != 0
	if deadline.Valid && strings.TrimSpace(deadline.String) != "" {
		d, err := time.ParseInLocation(dateLayout, deadline.String, time.Local)
		if err != nil {
			return Task{}, fmt.Errorf("bad deadline %q for task %d: %w", deadline.String, t.ID, err)
		}
		t.Deadline = &d
	}
	return t, nil
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullDate(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Format(dateLayout)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
