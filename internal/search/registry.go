package search

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ticketbot/internal/eventbus"
	kit "ticketbot/internal/transport"
	logx "ticketbot/pkg/logx"
)

var (
	// ErrLimitExceeded: the user already holds the maximum number of live
	// searches. Reported as a capacity message, never as an internal error.
	ErrLimitExceeded = errors.New("per-user search limit exceeded")

	// ErrShuttingDown: the registry no longer admits new searches.
	ErrShuttingDown = errors.New("registry is shutting down")
)

// Registry tracks active search workers per user and enforces the
// per-user concurrency limit. Admission and slot accounting are
// linearizable per user: the mutex guards only the brief bookkeeping,
// never a worker's network calls or sleeps.
type Registry struct {
	cfg     Config
	checker Checker
	notify  Notifier
	bus     eventbus.Bus
	log     logx.Logger

	mu     sync.Mutex
	base   context.Context
	users  map[int64][]*Handle
	closed bool

	seq atomic.Uint64

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewRegistry(cfg Config, checker Checker, notify Notifier, bus eventbus.Bus, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		cfg:     cfg.withDefaults(),
		checker: checker,
		notify:  notify,
		bus:     bus,
		log:     log,
		users:   map[int64][]*Handle{},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Config returns the effective (defaulted) configuration.
func (r *Registry) Config() Config { return r.cfg }

// Start binds the lifetime context that workers inherit, so process
// shutdown cancels every search. Call before the first Submit.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	r.base = ctx
	r.mu.Unlock()
}

// Submit admits a new search for req.UserID and spawns its worker, or
// returns ErrLimitExceeded / ErrShuttingDown. Admission and spawn are
// atomic with respect to concurrent submissions for the same user: two
// racing submits can never both take the last slot.
//
// Workers outlive the caller's ctx: their lifetime is the context given
// to Start, not the handler that submitted them.
func (r *Registry) Submit(ctx context.Context, req Request) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if len(r.users[req.UserID]) >= r.cfg.MaxPerUser {
		r.mu.Unlock()
		r.publish(EventRejected, Event{Req: req, Reason: "limit_exceeded"})
		return nil, ErrLimitExceeded
	}

	base := r.base
	if base == nil {
		base = context.Background()
	}
	wctx, cancel := context.WithCancel(base)
	h := &Handle{
		ID:     "s" + strconv.FormatUint(r.seq.Add(1), 10),
		Req:    req,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.users[req.UserID] = append(r.users[req.UserID], h)
	r.mu.Unlock()

	r.publish(EventAdmitted, Event{ID: h.ID, Req: req})
	r.log.Info("search admitted",
		logx.String("id", h.ID),
		logx.Int64("user_id", req.UserID),
		logx.String("req", req.String()))

	go r.runWorker(wctx, h)
	return h, nil
}

// release frees the handle's slot. Idempotent: every worker exit path and
// the force-reclaim in CancelAll funnel through the same Once.
func (r *Registry) release(h *Handle) {
	h.releaseOnce.Do(func() {
		h.cancel()

		r.mu.Lock()
		hs := r.users[h.Req.UserID]
		for i, other := range hs {
			if other == h {
				hs = append(hs[:i], hs[i+1:]...)
				break
			}
		}
		if len(hs) == 0 {
			delete(r.users, h.Req.UserID)
		} else {
			r.users[h.Req.UserID] = hs
		}
		r.mu.Unlock()

		close(h.done)
	})
}

// CancelAll signals cancellation to every live search of the user, waits
// up to StopGrace for the workers to acknowledge, and returns the number
// cancelled. Workers that already finished don't count; a worker that
// doesn't acknowledge in time is abandoned and its slot reclaimed anyway.
func (r *Registry) CancelAll(ctx context.Context, userID int64) int {
	r.mu.Lock()
	hs := append([]*Handle(nil), r.users[userID]...)
	r.mu.Unlock()

	if len(hs) == 0 {
		return 0
	}

	for _, h := range hs {
		h.Cancel()
	}

	// One grace window bounds the whole bulk cancel. The timer fires at
	// most once, so after the first expiry every remaining handle is
	// reclaimed immediately instead of waited on.
	deadline := time.NewTimer(r.cfg.StopGrace)
	defer deadline.Stop()
	expired := false

	cancelled := 0
	for _, h := range hs {
		if !expired {
			select {
			case <-h.Done():
				cancelled++
				continue
			case <-deadline.C:
				expired = true
			case <-ctx.Done():
				expired = true
			}
		}
		// Grace expired: reclaim the slot without waiting. The worker's
		// goroutine dies with its context whenever it finally unblocks.
		r.log.Warn("worker did not stop within grace, reclaiming slot",
			logx.String("id", h.ID), logx.Int64("user_id", userID))
		r.release(h)
		cancelled++
	}
	return cancelled
}

// ActiveUsers lists users with at least one live search.
func (r *Registry) ActiveUsers() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.users))
	for id, hs := range r.users {
		if len(hs) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// ActiveCount returns the user's live search count.
func (r *Registry) ActiveCount(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users[userID])
}

// Active snapshots the user's live requests (for the /active command).
func (r *Registry) Active(userID int64) []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, 0, len(r.users[userID]))
	for _, h := range r.users[userID] {
		out = append(out, h.Req)
	}
	return out
}

// Shutdown stops admitting, notifies every affected chat (best-effort),
// and cancels all searches. Used at process termination.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	r.closed = true
	chats := map[int64]int64{} // user -> one chat to notify
	for uid, hs := range r.users {
		for _, h := range hs {
			chats[uid] = h.Req.ChatID
		}
	}
	r.mu.Unlock()

	for _, chatID := range chats {
		if r.notify == nil {
			break
		}
		_ = r.notify.Notify(ctx, kit.Notification{
			Target:  kit.ChatTarget{ChatID: chatID},
			Text:    msgShutdown(),
			Options: &kit.SendOptions{RemoveKeys: true},
		})
	}

	for uid := range chats {
		n := r.CancelAll(ctx, uid)
		r.log.Info("searches cancelled on shutdown", logx.Int64("user_id", uid), logx.Int("count", n))
	}
}

// pollDelay returns one jittered monitoring interval.
func (r *Registry) pollDelay() time.Duration {
	base := r.cfg.PollInterval
	r.rngMu.Lock()
	f := (r.rng.Float64()*2 - 1) * r.cfg.PollJitter
	r.rngMu.Unlock()
	d := time.Duration(float64(base) * (1 + f))
	if d <= 0 {
		d = base
	}
	return d
}

func (r *Registry) publish(typ string, e Event) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.Event{Type: typ, Data: e})
}
