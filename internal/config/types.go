package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Search   SearchConfig   `json:"search"`
	Fetch    FetchConfig    `json:"fetch"`
	Rwby     RwbyConfig     `json:"rwby,omitempty"`

	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Storage  *StorageConfig  `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// GroupLog is an optional chat ID ("-100...") that receives the
	// telegram logging sink output.
	GroupLog string `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SearchConfig controls ticket monitoring.
//
// All durations are Go duration strings (e.g. "7s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - max_per_user: 3
//   - poll_interval: "7s"
//   - poll_jitter: 0.25
//   - stop_grace: "5s"
//   - timezone: "Europe/Minsk"
type SearchConfig struct {
	MaxPerUser   int     `json:"max_per_user,omitempty"`
	PollInterval string  `json:"poll_interval,omitempty"`
	PollJitter   float64 `json:"poll_jitter,omitempty"`
	StopGrace    string  `json:"stop_grace,omitempty"`
	Timezone     string  `json:"timezone,omitempty"`
}

// FetchConfig controls the retrying HTTP client.
//
// Defaults: timeout "7s", retry_attempts 8, retry_base "1s",
// retry_max_delay "3s", retry_jitter 0.25.
type FetchConfig struct {
	Timeout       string  `json:"timeout,omitempty"`
	RetryAttempts int     `json:"retry_attempts,omitempty"`
	RetryBase     string  `json:"retry_base,omitempty"`
	RetryMaxDelay string  `json:"retry_max_delay,omitempty"`
	RetryJitter   float64 `json:"retry_jitter,omitempty"`

	Proxy ProxyConfig `json:"proxy,omitempty"`
}

type ProxyConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Login    string `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
}

type RwbyConfig struct {
	BaseURL string `json:"base_url,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifierConfig struct {
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
}

// StorageConfig controls the optional search history log.
//
// Retention is a Go duration string; rows older than it are pruned on the
// PruneAt cron schedule.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./ticketbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Retention   string `json:"retention,omitempty"`    // default "720h"
	PruneAt     string `json:"prune_at,omitempty"`     // cron spec, default "0 4 * * *"
}
