package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "ticketbot/pkg/logx"
)

// Store is the persistence API used by the app's event subscriber.
type Store interface {
	AppendSearch(ctx context.Context, rec SearchRecord) error
	UpdateStatus(ctx context.Context, searchID, status, detail string) error
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
