package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ticketbot/internal/search"
	kit "ticketbot/internal/transport"
	"ticketbot/pkg/logx"
)

type recordingRegistry struct {
	mu        sync.Mutex
	submitted []search.Request
	submitErr error
	cancelled []int64
	active    []search.Request
}

func (r *recordingRegistry) Submit(ctx context.Context, req search.Request) (*search.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.submitErr != nil {
		return nil, r.submitErr
	}
	r.submitted = append(r.submitted, req)
	return nil, nil
}

func (r *recordingRegistry) CancelAll(ctx context.Context, userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, userID)
	return 2
}

func (r *recordingRegistry) Active(userID int64) []search.Request { return r.active }

func (r *recordingRegistry) Config() search.Config {
	return search.Config{MaxPerUser: 3, Location: time.UTC}
}

func (r *recordingRegistry) submits() []search.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]search.Request(nil), r.submitted...)
}

type sinkNotifier struct {
	mu   sync.Mutex
	sent []kit.Notification
}

func (s *sinkNotifier) Notify(ctx context.Context, n kit.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *sinkNotifier) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, n := range s.sent {
		out[i] = n.Text
	}
	return out
}

func newTestRouter(reg *recordingRegistry, sink *sinkNotifier) *Router {
	return New(Deps{Registry: reg, Notifier: sink, Log: logx.Nop()})
}

func incoming(text string) *Request {
	return &Request{
		Msg: kit.Message{
			ChatID:       10,
			FromID:       10,
			FromUsername: "traveller",
			Text:         text,
		},
		Kind: classify(text),
	}
}

func TestSubmitRejectsPastDepartureBeforeAdmission(t *testing.T) {
	t.Parallel()
	reg := &recordingRegistry{}
	sink := &sinkNotifier{}
	rt := newTestRouter(reg, sink)

	req := incoming("Минск Брест 2020-01-01 07:44")
	if err := rt.dispatch(context.Background(), req); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if n := len(reg.submits()); n != 0 {
		t.Fatalf("registry saw %d submits, want 0 for a past departure", n)
	}
	texts := sink.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Время указано в прошлом") {
		t.Fatalf("reply = %q, want the past-time hint", texts)
	}
}

func TestSubmitRejectsMalformedInputBeforeAdmission(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		hint string
	}{
		{"too few fields", "Минск Брест", "Ошибка ввода данных"},
		{"bad date", "Минск Брест 01.09.2026 07:44", "Неверный формат даты или времени"},
		{"bad time", "Минск Брест 2026-09-01 25:00", "Неверный формат даты или времени"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg := &recordingRegistry{}
			sink := &sinkNotifier{}
			rt := newTestRouter(reg, sink)

			if err := rt.dispatch(context.Background(), incoming(tt.text)); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if n := len(reg.submits()); n != 0 {
				t.Fatalf("registry saw %d submits, want 0", n)
			}
			texts := sink.texts()
			if len(texts) != 1 || !strings.Contains(texts[0], tt.hint) {
				t.Fatalf("reply = %q, want a %q hint", texts, tt.hint)
			}
		})
	}
}

func TestSubmitAdmitsValidRequestWithIdentity(t *testing.T) {
	t.Parallel()
	reg := &recordingRegistry{}
	sink := &sinkNotifier{}
	rt := newTestRouter(reg, sink)

	date := time.Now().UTC().AddDate(0, 0, 2).Format(search.DateLayout)
	text := fmt.Sprintf("Минск Брест %s 07:44", date)
	if err := rt.dispatch(context.Background(), incoming(text)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	subs := reg.submits()
	if len(subs) != 1 {
		t.Fatalf("registry saw %d submits, want 1", len(subs))
	}
	got := subs[0]
	if got.From != "Минск" || got.To != "Брест" || got.Date != date || got.Time != "07:44" {
		t.Fatalf("submitted request = %+v", got)
	}
	if got.ChatID != 10 || got.UserID != 10 || got.Username != "traveller" {
		t.Fatalf("identity not carried onto the request: %+v", got)
	}
	// The worker's initial check owns the confirmation; the router says nothing.
	if texts := sink.texts(); len(texts) != 0 {
		t.Fatalf("unexpected router reply: %q", texts)
	}
}

func TestSubmitLimitExceededReply(t *testing.T) {
	t.Parallel()
	reg := &recordingRegistry{submitErr: search.ErrLimitExceeded}
	sink := &sinkNotifier{}
	rt := newTestRouter(reg, sink)

	date := time.Now().UTC().AddDate(0, 0, 2).Format(search.DateLayout)
	req := incoming(fmt.Sprintf("Минск Брест %s 07:44", date))
	if err := rt.dispatch(context.Background(), req); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	texts := sink.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "лимит") {
		t.Fatalf("reply = %q, want the limit message", texts)
	}
}

func TestCancelButtonCancelsAndReportsCount(t *testing.T) {
	t.Parallel()
	reg := &recordingRegistry{}
	sink := &sinkNotifier{}
	rt := newTestRouter(reg, sink)

	req := incoming(search.ButtonCancel)
	if req.Kind != "cancel" {
		t.Fatalf("classify(%q) = %q, want cancel", search.ButtonCancel, req.Kind)
	}
	if err := rt.dispatch(context.Background(), req); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(reg.cancelled) != 1 || reg.cancelled[0] != 10 {
		t.Fatalf("cancelled users = %v, want [10]", reg.cancelled)
	}
	texts := sink.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Отменено 2 поиск(а)") {
		t.Fatalf("reply = %q, want the cancel count", texts)
	}
}
