package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "ticketbot/internal/transport"
	"ticketbot/pkg/logx"
)

// fakeAdapter records sent texts per chat. failures maps a text to the
// number of times SendText rejects it before succeeding. When gate is
// set, every send blocks on it after signalling started.
type fakeAdapter struct {
	mu       sync.Mutex
	perChat  map[int64][]string
	failures map[string]int

	gate    chan struct{}
	started chan struct{}
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{perChat: map[int64][]string{}, failures: map[string]int{}}
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return kit.MessageRef{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.failures[text]; n > 0 {
		f.failures[text] = n - 1
		return kit.MessageRef{}, errors.New("telegram: 502")
	}
	f.perChat[to.ChatID] = append(f.perChat[to.ChatID], text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.perChat[to.ChatID])}, nil
}

func (f *fakeAdapter) sent(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.perChat[chatID]...)
}

func note(chatID int64, text string) kit.Notification {
	return kit.Notification{Target: kit.ChatTarget{ChatID: chatID}, Text: text}
}

func fastConfig() Config {
	return Config{
		Workers:       2,
		QueueSize:     16,
		RatePerSec:    1000,
		RetryMax:      0,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
	}
}

func TestNotifyPerChatOrdering(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	svc := New(fastConfig(), ad, logx.Nop(), nil)
	svc.Start(context.Background())

	for _, text := range []string{"a1", "a2", "a3"} {
		if err := svc.Notify(context.Background(), note(1, text)); err != nil {
			t.Fatalf("notify chat 1 %q: %v", text, err)
		}
	}
	for _, text := range []string{"b1", "b2", "b3"} {
		if err := svc.Notify(context.Background(), note(2, text)); err != nil {
			t.Fatalf("notify chat 2 %q: %v", text, err)
		}
	}
	svc.Stop(context.Background())

	for chat, want := range map[int64][]string{
		1: {"a1", "a2", "a3"},
		2: {"b1", "b2", "b3"},
	} {
		got := ad.sent(chat)
		if len(got) != len(want) {
			t.Fatalf("chat %d got %v, want %v", chat, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chat %d message %d = %q, want %q", chat, i, got[i], want[i])
			}
		}
	}
}

func TestNotifyRetriesUntilDelivered(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	ad.failures["flaky"] = 2

	cfg := fastConfig()
	cfg.RetryMax = 3
	svc := New(cfg, ad, logx.Nop(), nil)
	svc.Start(context.Background())

	if err := svc.Notify(context.Background(), note(1, "flaky")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	svc.Stop(context.Background())

	got := ad.sent(1)
	if len(got) != 1 || got[0] != "flaky" {
		t.Fatalf("got %v, want the message delivered exactly once", got)
	}
}

func TestNotifyRetriesKeepChatOrder(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	ad.failures["first"] = 2

	cfg := fastConfig()
	cfg.RetryMax = 3
	svc := New(cfg, ad, logx.Nop(), nil)
	svc.Start(context.Background())

	if err := svc.Notify(context.Background(), note(1, "first")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := svc.Notify(context.Background(), note(1, "second")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	svc.Stop(context.Background())

	got := ad.sent(1)
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("got %v, want [first second]: retries must not reorder a chat", got)
	}
}

func TestNotifyDedupSuppressesRepeats(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	cfg := fastConfig()
	cfg.DedupWindow = time.Minute
	svc := New(cfg, ad, logx.Nop(), nil)
	svc.Start(context.Background())

	if err := svc.Notify(context.Background(), note(1, "same")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	// Identical chat+text within the window is swallowed without error.
	if err := svc.Notify(context.Background(), note(1, "same")); err != nil {
		t.Fatalf("duplicate notify: %v", err)
	}
	// Different text and the same text to another chat both pass.
	if err := svc.Notify(context.Background(), note(1, "other")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := svc.Notify(context.Background(), note(2, "same")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	svc.Stop(context.Background())

	if got := ad.sent(1); len(got) != 2 {
		t.Fatalf("chat 1 got %v, want the duplicate suppressed", got)
	}
	if got := ad.sent(2); len(got) != 1 {
		t.Fatalf("chat 2 got %v, want 1 message", got)
	}
}

func TestNotifyQueueFull(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	ad.gate = make(chan struct{})
	ad.started = make(chan struct{}, 1)

	cfg := fastConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	svc := New(cfg, ad, logx.Nop(), nil)
	svc.Start(context.Background())

	if err := svc.Notify(context.Background(), note(1, "in flight")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	// Wait until the worker holds the first message, so the queue is empty.
	select {
	case <-ad.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the first message")
	}

	if err := svc.Notify(context.Background(), note(1, "queued")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := svc.Notify(context.Background(), note(1, "overflow")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	close(ad.gate)
	svc.Stop(context.Background())
}

func TestNotifyAfterStopReturnsErrStopped(t *testing.T) {
	t.Parallel()
	svc := New(fastConfig(), newFakeAdapter(), logx.Nop(), nil)
	svc.Start(context.Background())
	svc.Stop(context.Background())

	if err := svc.Notify(context.Background(), note(1, "late")); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestShardIndexStableAndNonNegative(t *testing.T) {
	t.Parallel()
	if shardIndex(7, 4) != shardIndex(7, 4) {
		t.Fatal("shard assignment must be stable")
	}
	for _, chat := range []int64{0, 1, -1, -1001234567890, 42} {
		idx := shardIndex(chat, 4)
		if idx < 0 || idx >= 4 {
			t.Fatalf("shardIndex(%d) = %d, out of range", chat, idx)
		}
	}
	if shardIndex(5, 1) != 0 || shardIndex(5, 0) != 0 {
		t.Fatal("degenerate shard counts must map to 0")
	}
}
