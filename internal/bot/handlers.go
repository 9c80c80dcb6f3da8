package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "todobot/pkg/logx"
)

func (r *Router) registerCommands() {
	r.register(
		Command{
			Route:       "start",
			Description: "show help",
			Handle:      r.handleStart,
		},
		Command{
			Route:       "add",
			Description: "add a task",
			Usage:       "/add <text> [#category] [@YYYY-MM-DD]",
			Handle:      r.handleAdd,
		},
		Command{
			Route:       "list",
			Description: "show all tasks",
			Handle:      r.handleList,
		},
		Command{
			Route:       "done",
			Description: "mark a task done",
			Usage:       "/done <id>",
			Handle:      r.handleDone,
		},
		Command{
			Route:       "delete",
			Description: "delete a task",
			Usage:       "/delete <id>",
			Handle:      r.handleDelete,
		},
		Command{
			Route:       "clear",
			Description: "delete all your tasks",
			Handle:      r.handleClear,
		},
		Command{
			Route:       "search",
			Description: "search tasks by keyword",
			Usage:       "/search <keyword>",
			Handle:      r.handleSearch,
		},
		Command{
			Route:       "deadline",
			Description: "set or change a task deadline",
			Usage:       "/deadline <id> <YYYY-MM-DD>",
			Handle:      r.handleDeadline,
		},
	)
}

func (r *Router) handleStart(ctx context.Context, req *Request) error {
	var b strings.Builder
	b.WriteString("Hi! This is your to-do bot. Commands:\n")
	for _, route := range r.order {
		c := r.cmds[route]
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Route
		}
		fmt.Fprintf(&b, "%s — %s\n", usage, c.Description)
	}
	b.WriteString("Task IDs are shown in /list.")
	return req.Reply(ctx, b.String())
}

func (r *Router) handleAdd(ctx context.Context, req *Request) error {
	args, err := parseAddArgs(req.Args)
	if err != nil {
		return req.Reply(ctx, fmt.Sprintf("Error: %v. Example: /add Buy milk #home @2026-09-01", err))
	}

	id, err := r.store.AddTask(ctx, req.UserID, args.Text, args.Category, args.Deadline)
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}

	reply := fmt.Sprintf("Task added: %s (ID: %d)", args.Text, id)
	if args.Deadline != nil {
		reply += fmt.Sprintf(", due %s", args.Deadline.Format(dateLayout))
		r.armReminder(req.UserID, id, args.Text, *args.Deadline)
	}
	return req.Reply(ctx, reply)
}

// armReminder schedules the deadline reminder when the reminder point is
// still in the future. Deadlines closer than the offset get no advance
// reminder.
func (r *Router) armReminder(userID, taskID int64, text string, deadline time.Time) {
	fireAt := deadline.Add(-r.reminders.Offset())
	if !fireAt.After(time.Now()) {
		r.log.Debug("deadline too close for a reminder",
			logx.Int64("user", userID), logx.Int64("task", taskID), logx.Time("deadline", deadline))
		return
	}
	if err := r.reminders.Schedule(userID, taskID, text, fireAt); err != nil {
		r.log.Warn("scheduling reminder failed",
			logx.Int64("user", userID), logx.Int64("task", taskID), logx.Err(err))
	}
}

func (r *Router) handleList(ctx context.Context, req *Request) error {
	tasks, err := r.store.GetTasks(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return req.Reply(ctx, "You have no tasks.")
	}
	return req.Reply(ctx, formatTaskList("Your tasks:", tasks))
}

func (r *Router) handleDone(ctx context.Context, req *Request) error {
	id, err := parseTaskID(req.Args)
	if err != nil {
		return req.Reply(ctx, "Error: give the task ID as a number, e.g. /done 1")
	}
	ok, err := r.store.MarkDone(ctx, req.UserID, id)
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	if !ok {
		return req.Reply(ctx, fmt.Sprintf("Task %d not found.", id))
	}
	// Safe to call unconditionally; no-op when no reminder exists.
	r.reminders.Cancel(req.UserID, id)
	return req.Reply(ctx, fmt.Sprintf("Task %d marked as done!", id))
}

func (r *Router) handleDelete(ctx context.Context, req *Request) error {
	id, err := parseTaskID(req.Args)
	if err != nil {
		return req.Reply(ctx, "Error: give the task ID as a number, e.g. /delete 1")
	}
	ok, err := r.store.DeleteTask(ctx, req.UserID, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if !ok {
		return req.Reply(ctx, fmt.Sprintf("Task %d not found.", id))
	}
	r.reminders.Cancel(req.UserID, id)
	return req.Reply(ctx, fmt.Sprintf("Task %d deleted!", id))
}

func (r *Router) handleClear(ctx context.Context, req *Request) error {
	n, err := r.store.ClearAll(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	// Cancel from the registry, not a task snapshot: a reminder armed
	// concurrently with the clear must not fire for a deleted task.
	r.reminders.CancelUser(req.UserID)
	return req.Reply(ctx, fmt.Sprintf("Deleted %d task(s).", n))
}

func (r *Router) handleSearch(ctx context.Context, req *Request) error {
	keyword := strings.TrimSpace(req.Args)
	if keyword == "" {
		return req.Reply(ctx, "Error: give a keyword, e.g. /search milk")
	}
	tasks, err := r.store.SearchTasks(ctx, req.UserID, keyword)
	if err != nil {
		return fmt.Errorf("search tasks: %w", err)
	}
	if len(tasks) == 0 {
		return req.Reply(ctx, fmt.Sprintf("Nothing found for %q.", keyword))
	}
	return req.Reply(ctx, formatTaskList(fmt.Sprintf("Found for %q:", keyword), tasks))
}

func (r *Router) handleDeadline(ctx context.Context, req *Request) error {
	idRaw, dateRaw, _ := strings.Cut(req.Args, " ")
	id, err := parseTaskID(idRaw)
	if err != nil {
		return req.Reply(ctx, "Error: usage /deadline <id> <YYYY-MM-DD>")
	}
	d, err := parseDate(strings.TrimSpace(dateRaw))
	if err != nil {
		return req.Reply(ctx, fmt.Sprintf("Error: %v", err))
	}

	task, found, err := r.store.GetTask(ctx, req.UserID, id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if !found {
		return req.Reply(ctx, fmt.Sprintf("Task %d not found.", id))
	}
	if _, err := r.store.SetDeadline(ctx, req.UserID, id, &d); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	// Schedule replaces any previous reminder for this task; the new
	// reminder snapshots the task's current text.
	r.reminders.Cancel(req.UserID, id)
	r.armReminder(req.UserID, id, task.Text, d)
	return req.Reply(ctx, fmt.Sprintf("Task %d is now due %s.", id, d.Format(dateLayout)))
}
