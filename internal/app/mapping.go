package app

import (
	"fmt"
	"strings"
	"time"

	"ticketbot/internal/config"
	"ticketbot/internal/fetch"
	"ticketbot/internal/notifier"
	"ticketbot/internal/search"
	"ticketbot/internal/storage"
)

// The config package carries durations as strings so hot-reloads can be
// rejected before anything is applied; these mappers do the string ->
// typed conversion once per load.

func mapSearchConfig(cfg *config.Config) (search.Config, error) {
	pollInterval, err := config.ParseDurationField("search.poll_interval", cfg.Search.PollInterval)
	if err != nil {
		return search.Config{}, err
	}
	stopGrace, err := config.ParseDurationField("search.stop_grace", cfg.Search.StopGrace)
	if err != nil {
		return search.Config{}, err
	}

	var loc *time.Location
	if tz := strings.TrimSpace(cfg.Search.Timezone); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return search.Config{}, fmt.Errorf("search.timezone: invalid %q: %w", tz, err)
		}
	}
	if cfg.Search.PollJitter < 0 || cfg.Search.PollJitter >= 1 {
		return search.Config{}, fmt.Errorf("search.poll_jitter must be in [0, 1)")
	}
	if cfg.Search.MaxPerUser < 0 {
		return search.Config{}, fmt.Errorf("search.max_per_user must be >= 0")
	}

	return search.Config{
		MaxPerUser:   cfg.Search.MaxPerUser,
		PollInterval: pollInterval,
		PollJitter:   cfg.Search.PollJitter,
		StopGrace:    stopGrace,
		Location:     loc,
	}, nil
}

func mapFetchConfig(cfg *config.Config) (fetch.Policy, fetch.Proxy, error) {
	timeout, err := config.ParseDurationField("fetch.timeout", cfg.Fetch.Timeout)
	if err != nil {
		return fetch.Policy{}, fetch.Proxy{}, err
	}
	base, err := config.ParseDurationField("fetch.retry_base", cfg.Fetch.RetryBase)
	if err != nil {
		return fetch.Policy{}, fetch.Proxy{}, err
	}
	maxDelay, err := config.ParseDurationField("fetch.retry_max_delay", cfg.Fetch.RetryMaxDelay)
	if err != nil {
		return fetch.Policy{}, fetch.Proxy{}, err
	}
	if cfg.Fetch.RetryAttempts < 0 {
		return fetch.Policy{}, fetch.Proxy{}, fmt.Errorf("fetch.retry_attempts must be >= 0")
	}
	if cfg.Fetch.RetryJitter < 0 || cfg.Fetch.RetryJitter >= 1 {
		return fetch.Policy{}, fetch.Proxy{}, fmt.Errorf("fetch.retry_jitter must be in [0, 1)")
	}
	if cfg.Fetch.Proxy.Enabled && strings.TrimSpace(cfg.Fetch.Proxy.Host) == "" {
		return fetch.Policy{}, fetch.Proxy{}, fmt.Errorf("fetch.proxy.host is required when proxy is enabled")
	}

	pol := fetch.Policy{
		MaxAttempts: cfg.Fetch.RetryAttempts,
		Timeout:     timeout,
		BaseDelay:   base,
		MaxDelay:    maxDelay,
		Jitter:      cfg.Fetch.RetryJitter,
	}
	prx := fetch.Proxy{
		Enabled:  cfg.Fetch.Proxy.Enabled,
		Host:     cfg.Fetch.Proxy.Host,
		Port:     cfg.Fetch.Proxy.Port,
		Login:    cfg.Fetch.Proxy.Login,
		Password: cfg.Fetch.Proxy.Password,
	}
	return pol, prx, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	if cfg.Notifier == nil {
		return notifier.Config{}, nil
	}
	n := cfg.Notifier
	retryBase, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notifier.dedup_window", n.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
		return notifier.Config{}, fmt.Errorf("notifier: counts must be >= 0")
	}
	return notifier.Config{
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: n.DedupMaxEntries,
	}, nil
}

// mapStorageConfig returns (config, enabled, error).
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}

// mapRetention returns the prune window and cron spec for the search log.
func mapRetention(cfg *config.Config) (time.Duration, string, error) {
	if cfg.Storage == nil {
		return 0, "", nil
	}
	retention, err := config.ParseDurationOrDefault("storage.retention", cfg.Storage.Retention, 720*time.Hour)
	if err != nil {
		return 0, "", err
	}
	spec := strings.TrimSpace(cfg.Storage.PruneAt)
	if spec == "" {
		spec = "0 4 * * *"
	}
	return retention, spec, nil
}
