package search

import (
	"context"
	"errors"
	"time"

	"ticketbot/internal/fetch"
	"ticketbot/internal/rwby"
	kit "ticketbot/internal/transport"
	logx "ticketbot/pkg/logx"
)

// runWorker drives a single search from admission to termination. The
// slot is released exactly once, on every exit path, before the final
// user notification may be observed as "slot free".
func (r *Registry) runWorker(ctx context.Context, h *Handle) {
	defer r.release(h)

	log := r.log.With(
		logx.String("id", h.ID),
		logx.Int64("user_id", h.Req.UserID),
		logx.String("req", h.Req.String()),
	)

	if !r.initialCheck(ctx, h, log) {
		return
	}
	r.monitor(ctx, h, log)
}

// initialCheck performs the fail-fast first lookup. Any failure here,
// including transient ones, terminates the search immediately: the user
// gets a definitive answer about their input before monitoring begins.
// Returns true when monitoring should start.
func (r *Registry) initialCheck(ctx context.Context, h *Handle, log logx.Logger) bool {
	out, err := r.checker.Check(ctx, h.Req.From, h.Req.To, h.Req.Date, h.Req.Time)
	if ctx.Err() != nil {
		r.publish(EventCancelled, Event{ID: h.ID, Req: h.Req})
		return false
	}
	if err != nil {
		var nerr *fetch.NetworkError
		if errors.As(err, &nerr) {
			log.Warn("initial check failed after retries", logx.Err(err))
		} else {
			log.Error("initial check failed", logx.Err(err))
		}
		r.send(ctx, h, msgServerUnavailable(h.Req), nil)
		r.publish(EventFailed, Event{ID: h.ID, Req: h.Req, Reason: "network_error"})
		return false
	}

	switch out.Kind {
	case rwby.KindRouteError:
		r.send(ctx, h, msgRouteError(out.ErrorText, ExampleLine(r.cfg.Location)), kbCancel())
		r.publish(EventFailed, Event{ID: h.ID, Req: h.Req, Reason: "route_error"})
		return false
	case rwby.KindTrainNotFound:
		r.send(ctx, h, msgTrainNotFound(h.Req, ExampleLine(r.cfg.Location)), kbCancel())
		r.publish(EventFailed, Event{ID: h.ID, Req: h.Req, Reason: "train_not_found"})
		return false
	case rwby.KindTransient:
		log.Warn("initial check got an unusable page")
		r.send(ctx, h, msgServerUnavailable(h.Req), nil)
		r.publish(EventFailed, Event{ID: h.ID, Req: h.Req, Reason: "transient"})
		return false
	case rwby.KindAvailable:
		// Already on sale: confirm and let the first monitoring pass
		// deliver the success message.
		r.send(ctx, h, msgConfirmed(h.Req), kbCancelMore())
		r.publish(EventConfirmed, Event{ID: h.ID, Req: h.Req})
		return true
	default: // KindUnavailable
		r.send(ctx, h, msgConfirmed(h.Req), kbCancelMore())
		r.publish(EventConfirmed, Event{ID: h.ID, Req: h.Req})
		return true
	}
}

// monitor polls until tickets appear, the page turns bad, or the search
// is cancelled. Unlike initialCheck it tolerates transient failures: the
// route was already proven valid, so a flaky upstream just means another
// round of waiting. Each pass sleeps first so the initial check and the
// first poll never hit the upstream back-to-back.
func (r *Registry) monitor(ctx context.Context, h *Handle, log logx.Logger) {
	for {
		if !sleepCtx(ctx, r.pollDelay()) {
			r.publish(EventCancelled, Event{ID: h.ID, Req: h.Req})
			return
		}

		out, err := r.checker.Check(ctx, h.Req.From, h.Req.To, h.Req.Date, h.Req.Time)
		if ctx.Err() != nil {
			r.publish(EventCancelled, Event{ID: h.ID, Req: h.Req})
			return
		}
		if err != nil {
			log.Warn("poll failed, will retry next interval", logx.Err(err))
		} else {
			switch out.Kind {
			case rwby.KindAvailable:
				log.Info("tickets on sale")
				r.send(ctx, h, msgFound(h.Req), kbCancelMore())
				r.publish(EventFound, Event{ID: h.ID, Req: h.Req})
				return
			case rwby.KindRouteError, rwby.KindTrainNotFound:
				// A route that validated earlier no longer resolves;
				// the schedule likely changed under us.
				log.Warn("monitored train disappeared from schedule",
					logx.String("kind", out.Kind.String()))
				r.send(ctx, h, msgParamsWrong(h.Req), nil)
				r.publish(EventFailed, Event{ID: h.ID, Req: h.Req, Reason: "train_gone"})
				return
			case rwby.KindTransient:
				log.Debug("unusable page, will retry next interval")
			case rwby.KindUnavailable:
				log.Debug("tickets not on sale yet")
			}
		}
	}
}

func (r *Registry) send(ctx context.Context, h *Handle, text string, keys [][]string) {
	if r.notify == nil {
		return
	}
	n := kit.Notification{
		Target:  kit.ChatTarget{ChatID: h.Req.ChatID},
		Text:    text,
		Options: htmlOpts(keys),
	}
	if err := r.notify.Notify(ctx, n); err != nil {
		r.log.Error("notification enqueue failed",
			logx.String("id", h.ID), logx.Err(err))
	}
}

// sleepCtx waits d or until ctx is cancelled. Returns false on cancel.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
