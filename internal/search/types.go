package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticketbot/internal/rwby"
	kit "ticketbot/internal/transport"
)

// Request describes one search: notify the owning chat when the train
// departing From→To at Time on Date becomes purchasable. Immutable after
// creation; owned by its worker for the worker's lifetime.
type Request struct {
	From string
	To   string
	Date string // "2006-01-02"
	Time string // "15:04"

	ChatID   int64
	UserID   int64
	Username string
}

// Route renders "From → To" for user-facing messages.
func (r Request) Route() string { return r.From + " → " + r.To }

func (r Request) String() string {
	return fmt.Sprintf("%s %s %s %s", r.From, r.To, r.Date, r.Time)
}

// Checker is one fetch+classify pass against the schedule page.
// Implemented by rwby.Checker; faked in tests.
type Checker interface {
	Check(ctx context.Context, from, to, date, timeStr string) (rwby.Outcome, error)
}

// Notifier is the best-effort message sink workers push to. Failures are
// the notifier's problem (logged there), never fatal to a search.
type Notifier interface {
	Notify(ctx context.Context, n kit.Notification) error
}

// Config bounds the monitor. Read-only for the process lifetime.
type Config struct {
	// MaxPerUser caps live searches per user id.
	MaxPerUser int

	// PollInterval is the base sleep between monitoring passes;
	// PollJitter (0.25 = ±25%) randomizes it so concurrent searches don't
	// hit the upstream in lockstep.
	PollInterval time.Duration
	PollJitter   float64

	// StopGrace bounds how long CancelAll waits for workers to
	// acknowledge before abandoning them and reclaiming their slots.
	StopGrace time.Duration

	// Location is the service timezone for "is this departure in the
	// past" checks (the railway runs on local time, users type local
	// times).
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.MaxPerUser <= 0 {
		c.MaxPerUser = 3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 7 * time.Second
	}
	if c.PollJitter <= 0 {
		c.PollJitter = 0.25
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 5 * time.Second
	}
	if c.Location == nil {
		loc, err := time.LoadLocation("Europe/Minsk")
		if err != nil {
			loc = time.UTC
		}
		c.Location = loc
	}
	return c
}

// Handle represents one running search worker: its cancellation signal
// and completion marker. Created under the registry's admission lock,
// destroyed (slot freed) when the worker terminates for any reason.
type Handle struct {
	ID  string
	Req Request

	cancel context.CancelFunc
	done   chan struct{}

	releaseOnce sync.Once
}

// Cancel signals the worker to stop. The worker observes it at its
// checkpoints (before each sleep, after each fetch).
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the worker has terminated and its slot is freed.
func (h *Handle) Done() <-chan struct{} { return h.done }
