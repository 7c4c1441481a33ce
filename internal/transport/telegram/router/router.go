// Package router turns incoming Telegram updates into search commands.
//
// The surface is deliberately small: /start, /active, the two reply
// keyboard buttons, and free-form "From To Date Time" text. Everything
// outbound goes through the notifier so replies and worker messages to
// the same chat stay ordered.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	rtsup "ticketbot/internal/runtime/supervisor"
	"ticketbot/internal/search"
	kit "ticketbot/internal/transport"
	logx "ticketbot/pkg/logx"
)

// Registry is the slice of *search.Registry the router needs.
type Registry interface {
	Submit(ctx context.Context, req search.Request) (*search.Handle, error)
	CancelAll(ctx context.Context, userID int64) int
	Active(userID int64) []search.Request
	Config() search.Config
}

type Deps struct {
	Registry Registry
	Notifier search.Notifier
	Log      logx.Logger

	// Workers bounds concurrent handler executions; a user waiting out a
	// CancelAll grace doesn't stall everyone else. Default 4.
	Workers int
	// HandlerTimeout bounds a single handler run. Default 30s.
	HandlerTimeout time.Duration
}

type Request struct {
	Msg  kit.Message
	Kind string // "start", "active", "cancel", "more", "submit"
}

type Router struct {
	reg     Registry
	notify  search.Notifier
	log     logx.Logger
	handler HandlerFunc
	workers int

	sup *rtsup.Supervisor
}

func New(d Deps) *Router {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Workers <= 0 {
		d.Workers = 4
	}
	if d.HandlerTimeout <= 0 {
		d.HandlerTimeout = 30 * time.Second
	}
	r := &Router{
		reg:     d.Registry,
		notify:  d.Notifier,
		log:     d.Log,
		workers: d.Workers,
	}
	r.handler = Chain(r.dispatch,
		MWPanicRecover(d.Log),
		MWRequestLog(d.Log),
		MWTimeout(d.HandlerTimeout),
	)
	return r
}

// Run consumes updates until ctx is done or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) {
	r.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(r.log.With(logx.String("comp", "router"))),
		rtsup.WithCancelOnError(false),
	)
	for i := 0; i < r.workers; i++ {
		name := fmt.Sprintf("dispatch.%d", i)
		r.sup.Go0(name, func(c context.Context) {
			for {
				select {
				case <-c.Done():
					return
				case u, ok := <-updates:
					if !ok {
						return
					}
					if u.Message == nil || strings.TrimSpace(u.Message.Text) == "" {
						continue
					}
					req := &Request{Msg: *u.Message, Kind: classify(u.Message.Text)}
					_ = r.handler(c, req)
				}
			}
		})
	}
}

// Wait blocks until all dispatch workers have exited.
func (r *Router) Wait(ctx context.Context) {
	if r.sup != nil {
		_ = r.sup.Wait(ctx)
	}
}

// classify resolves a message to a command: exact button labels beat
// command prefixes beat free text. Buttons match case-insensitively so
// users who type them by hand still hit the path.
func classify(text string) string {
	t := strings.TrimSpace(text)
	switch {
	case strings.EqualFold(t, search.ButtonCancel):
		return "cancel"
	case strings.EqualFold(t, search.ButtonMore):
		return "more"
	case t == "/start" || strings.HasPrefix(t, "/start "):
		return "start"
	case t == "/active" || strings.HasPrefix(t, "/active "):
		return "active"
	default:
		return "submit"
	}
}

func (r *Router) dispatch(ctx context.Context, req *Request) error {
	switch req.Kind {
	case "start":
		return r.handleStart(ctx, req)
	case "active":
		return r.handleActive(ctx, req)
	case "cancel":
		return r.handleCancel(ctx, req)
	case "more":
		return r.handleMore(ctx, req)
	default:
		return r.handleSubmit(ctx, req)
	}
}
