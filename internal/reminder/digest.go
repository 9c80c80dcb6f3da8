package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"todobot/internal/notify"
	"todobot/internal/storage"
	logx "todobot/pkg/logx"
)

// DigestConfig controls the optional daily open-task summary.
type DigestConfig struct {
	Enabled  bool
	Spec     string // standard 5-field cron expression
	Timezone string // IANA TZ; empty means process-local
}

const defaultDigestSpec = "0 8 * * *"

// Digest sends each active user a summary of their open tasks on a cron
// schedule. It is independent of the deadline reminder queue.
type Digest struct {
	c        *cron.Cron
	store    storage.Store
	notifier notify.Notifier
	log      logx.Logger
}

func NewDigest(cfg DigestConfig, store storage.Store, notifier notify.Notifier, log logx.Logger) (*Digest, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("digest: bad timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	spec := strings.TrimSpace(cfg.Spec)
	if spec == "" {
		spec = defaultDigestSpec
	}

	d := &Digest{
		c:        cron.New(cron.WithLocation(loc)),
		store:    store,
		notifier: notifier,
		log:      log,
	}
	if _, err := d.c.AddFunc(spec, d.run); err != nil {
		return nil, fmt.Errorf("digest: bad cron spec %q: %w", spec, err)
	}
	return d, nil
}

func (d *Digest) Start() {
	d.c.Start()
	d.log.Info("daily digest started")
}

func (d *Digest) Stop(ctx context.Context) {
	stopped := d.c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

func (d *Digest) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	users, err := d.store.ActiveUsers(ctx)
	if err != nil {
		d.log.Warn("digest: reading active users failed", logx.Err(err))
		return
	}

	for _, userID := range users {
		tasks, err := d.store.GetTasks(ctx, userID)
		if err != nil {
			d.log.Warn("digest: reading tasks failed", logx.Int64("user", userID), logx.Err(err))
			continue
		}
		text := formatDigest(tasks)
		if text == "" {
			continue
		}
		if err := d.notifier.Notify(ctx, userID, text); err != nil {
			d.log.Warn("digest: delivery failed", logx.Int64("user", userID), logx.Err(err))
		}
	}
}

func formatDigest(tasks []storage.Task) string {
	var b strings.Builder
	open := 0
	for _, t := range tasks {
		if t.Done {
			continue
		}
		open++
		fmt.Fprintf(&b, "%d. %s", t.ID, t.Text)
		if t.Deadline != nil {
			fmt.Fprintf(&b, " (due %s)", t.Deadline.Format("2006-01-02"))
		}
		b.WriteByte('\n')
	}
	if open == 0 {
		return ""
	}
	return fmt.Sprintf("Good morning! You have %d open task(s):\n%s", open, b.String())
}
