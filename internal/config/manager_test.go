package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleYAML = `
telegram:
  token: "123:abc"
  group_log: "-1001234567890"
  poll_timeout: "10s"
logging:
  level: debug
  console: true
search:
  max_per_user: 2
  poll_interval: "5s"
  timezone: "Europe/Minsk"
fetch:
  retry_attempts: 4
  proxy:
    enabled: true
    host: proxy.local
    port: 3128
notifier:
  workers: 3
  rate_per_sec: 5
storage:
  driver: sqlite
  path: ./history.db
  retention: "168h"
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", sampleYAML)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Search.MaxPerUser != 2 || cfg.Search.PollInterval != "5s" {
		t.Fatalf("search = %+v", cfg.Search)
	}
	if !cfg.Fetch.Proxy.Enabled || cfg.Fetch.Proxy.Port != 3128 {
		t.Fatalf("proxy = %+v", cfg.Fetch.Proxy)
	}
	if cfg.Notifier == nil || cfg.Notifier.Workers != 3 {
		t.Fatalf("notifier = %+v", cfg.Notifier)
	}
	if cfg.Storage == nil || cfg.Storage.Retention != "168h" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", sampleYAML+"\nsurprise: true\n")

	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected an unknown-field error")
	} else if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("err = %v, want unknown-field", err)
	}
}

func TestParseJSONFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json",
		`{"telegram": {"token": "t", "group_log": "", "poll_timeout": "15s"}, "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "min_level": "", "rate_per_sec": 0}}, "search": {}, "fetch": {}}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Telegram.PollTimeout != "15s" {
		t.Fatalf("poll_timeout = %q", cfg.Telegram.PollTimeout)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json",
		`{"telegram": {"token": "t", "group_log": "", "poll_timeout": ""}, "logging": {"level": "", "console": false, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "min_level": "", "rate_per_sec": 0}}, "search": {}, "fetch": {}} {"extra": 1}`)

	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected trailing-data rejection")
	}
}

func TestReloadRejectedByValidator(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", sampleYAML)

	m := NewManager(path)
	first, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if cfg.Search.MaxPerUser > 10 {
			return errors.New("max_per_user too large")
		}
		return nil
	})
	sub := m.Subscribe(1)
	t.Cleanup(func() { m.Unsubscribe(sub) })

	bad := strings.Replace(sampleYAML, "max_per_user: 2", "max_per_user: 99", 1)
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	m.reload(context.Background())

	// A rejected config is neither committed nor published.
	if got := m.Get(); got != first {
		t.Fatal("rejected config was committed")
	}
	select {
	case cfg := <-sub:
		t.Fatalf("rejected config was published: %+v", cfg.Search)
	default:
	}

	good := strings.Replace(sampleYAML, "max_per_user: 2", "max_per_user: 5", 1)
	if err := os.WriteFile(path, []byte(good), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	m.reload(context.Background())

	select {
	case cfg := <-sub:
		if cfg.Search.MaxPerUser != 5 {
			t.Fatalf("published max_per_user = %d, want 5", cfg.Search.MaxPerUser)
		}
	case <-time.After(time.Second):
		t.Fatal("accepted config was not published")
	}
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", sampleYAML)

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(1)
	t.Cleanup(func() { m.Unsubscribe(sub) })

	// Same bytes rewritten; editors often fire spurious write events.
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	m.reload(context.Background())

	select {
	case <-sub:
		t.Fatal("unchanged config was republished")
	default:
	}
}

func TestPublishDropsOldestForSlowSubscriber(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	sub := m.Subscribe(1)
	t.Cleanup(func() { m.Unsubscribe(sub) })

	old := &Config{Search: SearchConfig{MaxPerUser: 1}}
	next := &Config{Search: SearchConfig{MaxPerUser: 2}}
	m.publish(old)
	m.publish(next)

	got := <-sub
	if got.Search.MaxPerUser != 2 {
		t.Fatalf("got max_per_user %d, want the newest config", got.Search.MaxPerUser)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  7s ", 7 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"-1s", 0, true},
		{"7", 0, true},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		d, err := ParseDurationField("search.poll_interval", tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tt.raw, err)
			continue
		}
		if d != tt.want {
			t.Errorf("%q = %v, want %v", tt.raw, d, tt.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("fetch.timeout", "", 7*time.Second)
	if err != nil || d != 7*time.Second {
		t.Fatalf("empty: %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("fetch.timeout", "250ms", 7*time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("explicit: %v, %v", d, err)
	}
	if _, err = ParseDurationOrDefault("fetch.timeout", "nope", time.Second); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}
