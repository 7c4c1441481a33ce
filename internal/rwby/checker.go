package rwby

import (
	"context"

	"ticketbot/internal/fetch"
	logx "ticketbot/pkg/logx"
)

// Checker glues the retrying fetcher to the parser: one Check is one
// fetch+classify pass for a route/date/time.
type Checker struct {
	base   string
	client *fetch.Client
	log    logx.Logger
}

func NewChecker(baseURL string, client *fetch.Client, log logx.Logger) *Checker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Checker{base: baseURL, client: client, log: log}
}

// Check fetches the schedule page and classifies it. A returned error is
// always a network-level condition (*fetch.NetworkError after exhausted
// retries, or ctx.Err()); everything the page itself can express comes
// back as an Outcome.
func (c *Checker) Check(ctx context.Context, from, to, date, timeStr string) (Outcome, error) {
	u := RouteURL(c.base, from, to, date)

	res, err := c.client.Get(ctx, u)
	if err != nil {
		return Outcome{}, err
	}
	if !res.OK() {
		// An upstream 5xx (or a challenge page with an odd status) is a
		// bad moment, not a bad request. Poll again later.
		c.log.Debug("schedule page returned non-2xx", logx.String("url", u), logx.Int("status", res.StatusCode))
		return Outcome{Kind: KindTransient}, nil
	}

	return Parse(res.Body, timeStr), nil
}
