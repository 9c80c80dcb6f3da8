package bot

import (
	"context"
	"strings"
	"time"

	"todobot/internal/reminder"
	rtsup "todobot/internal/runtime/supervisor"
	"todobot/internal/storage"
	kit "todobot/internal/transport"
	logx "todobot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

// Command is one chat command. Route is the leading token without the
// slash ("add", "done", ...).
type Command struct {
	Route       string
	Description string
	Usage       string
	Handle      HandlerFunc
}

// Request carries one parsed inbound command to its handler.
type Request struct {
	UserID int64
	ChatID int64
	Args   string // raw text after the command token

	router *Router
}

// Reply sends text back to the chat the command came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	return r.router.adapter.SendText(ctx, kit.ChatTarget{ChatID: r.ChatID}, text, nil)
}

const handlerTimeout = 15 * time.Second

// Router dispatches inbound updates to command handlers. Handlers run
// concurrently (one goroutine per update) and share the store and
// reminder registry, which are safe for concurrent use.
type Router struct {
	adapter   kit.Adapter
	store     storage.Store
	reminders *reminder.Service
	log       logx.Logger

	cmds  map[string]Command
	order []string

	sup *rtsup.Supervisor
}

func NewRouter(adapter kit.Adapter, store storage.Store, reminders *reminder.Service, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		adapter:   adapter,
		store:     store,
		reminders: reminders,
		log:       log,
		cmds:      map[string]Command{},
	}
	r.registerCommands()
	return r
}

func (r *Router) register(cmds ...Command) {
	for _, c := range cmds {
		r.cmds[c.Route] = c
		r.order = append(r.order, c.Route)
	}
}

// Run consumes updates until ctx is cancelled.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	r.sup = rtsup.New(ctx, rtsup.WithLogger(r.log))
	for {
		select {
		case <-ctx.Done():
			// Let in-flight handlers finish (bounded).
			wctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			_ = r.sup.Wait(wctx)
			cancel()
			return
		case up := <-updates:
			if up.Message == nil {
				continue
			}
			msg := *up.Message
			r.sup.Go("handle", func(c context.Context) {
				r.dispatch(c, msg)
			})
		}
	}
}

func (r *Router) dispatch(ctx context.Context, msg kit.Message) {
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	req := &Request{
		UserID: msg.FromID,
		ChatID: msg.ChatID,
		router: r,
	}

	route, args := splitCommand(msg.Text)
	if route == "" {
		_ = req.Reply(ctx, "Unknown command. Use /start for help.")
		return
	}
	cmd, ok := r.cmds[route]
	if !ok {
		_ = req.Reply(ctx, "Unknown command. Use /start for help.")
		return
	}
	req.Args = args

	start := time.Now()
	err := cmd.Handle(ctx, req)
	if err != nil {
		r.log.Warn("command failed",
			logx.String("cmd", route),
			logx.Int64("user", req.UserID),
			logx.Duration("took", time.Since(start)),
			logx.Err(err),
		)
		_ = req.Reply(ctx, "Something went wrong. Please try again later.")
		return
	}
	r.log.Debug("command handled",
		logx.String("cmd", route),
		logx.Int64("user", req.UserID),
		logx.Duration("took", time.Since(start)),
	)
}

// splitCommand extracts the command route and argument tail from a
// message. Returns "" when the text is not a slash command.
// "/add@some_bot milk" parses the same as "/add milk".
func splitCommand(text string) (route, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, tail, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(tail)
}
