package notifier

import "time"

// Config controls the delivery pipeline. All fields have working
// defaults; a zero Config yields an enabled notifier.
type Config struct {
	Workers    int `json:"workers"`
	QueueSize  int `json:"queue_size"` // per-shard queue capacity
	RatePerSec int `json:"rate_per_sec"`

	RetryMax      int           `json:"retry_max"`
	RetryBase     time.Duration `json:"-"`
	RetryMaxDelay time.Duration `json:"-"`

	// DedupWindow suppresses identical messages to the same chat within
	// the window. Zero disables dedup.
	DedupWindow     time.Duration `json:"-"`
	DedupMaxEntries int           `json:"dedup_max_entries"`
}

// NotificationEvent is the payload of notifier.* bus events.
type NotificationEvent struct {
	ChatID int64     `json:"chat_id"`
	Key    string    `json:"key,omitempty"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}
