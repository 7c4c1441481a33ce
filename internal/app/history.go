package app

import (
	"context"
	"time"

	"ticketbot/internal/eventbus"
	"ticketbot/internal/search"
	"ticketbot/internal/storage"
	logx "ticketbot/pkg/logx"
)

// historyLoop maps search lifecycle events to search-log rows. Writes are
// best-effort; a broken database never touches a running search.
func historyLoop(ctx context.Context, events <-chan eventbus.Event, store storage.Store, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			se, ok := e.Data.(search.Event)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := recordEvent(wctx, store, e.Type, se)
			cancel()
			if err != nil {
				log.Warn("search log write failed",
					logx.String("type", e.Type),
					logx.String("id", se.ID),
					logx.Err(err))
			}
		}
	}
}

func recordEvent(ctx context.Context, store storage.Store, typ string, se search.Event) error {
	switch typ {
	case search.EventAdmitted:
		return store.AppendSearch(ctx, storage.SearchRecord{
			SearchID: se.ID,
			UserID:   se.Req.UserID,
			Username: se.Req.Username,
			ChatID:   se.Req.ChatID,
			From:     se.Req.From,
			To:       se.Req.To,
			Date:     se.Req.Date,
			Time:     se.Req.Time,
			Status:   "active",
		})
	case search.EventConfirmed:
		return store.UpdateStatus(ctx, se.ID, "monitoring", "")
	case search.EventFound:
		return store.UpdateStatus(ctx, se.ID, "found", "")
	case search.EventFailed:
		return store.UpdateStatus(ctx, se.ID, "failed", se.Reason)
	case search.EventCancelled:
		return store.UpdateStatus(ctx, se.ID, "cancelled", "")
	default:
		// search.rejected and notifier.* events have no row.
		return nil
	}
}
