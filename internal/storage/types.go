package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the search history log.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// SearchRecord is one row of the search history.
// Keep it compact and schema-stable.
type SearchRecord struct {
	SearchID string
	UserID   int64
	Username string
	ChatID   int64
	From     string
	To       string
	Date     string
	Time     string
	Status   string
	Detail   string
	At       time.Time
}
