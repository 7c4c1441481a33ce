// Package rwby understands the pass.rw.by schedule page: building route
// URLs and classifying a fetched page into an availability outcome.
//
// The page markup is an external, uncontrolled dependency. Everything
// brittle about it is isolated here: the selectors, the sale-permission
// attribute, and the row lookup.
package rwby

import (
	"net/url"
	"strings"
)

// OutcomeKind is the closed classification of one fetched schedule page
// against one target departure time. Worker control flow branches on this
// and never on raw page structure.
type OutcomeKind int

const (
	// KindTransient: the page did not look like a schedule page at all
	// (malformed markup, unexpected structure). Expected to resolve on a
	// later poll; never terminal during monitoring.
	KindTransient OutcomeKind = iota

	// KindRouteError: the site rejected the route/station query and
	// rendered its error region. Terminal.
	KindRouteError

	// KindTrainNotFound: the schedule rendered but has no row with the
	// requested departure time. Terminal.
	KindTrainNotFound

	// KindAvailable: the matched train exists and ticket sale is open.
	KindAvailable

	// KindUnavailable: the matched train exists but sale is not open yet.
	KindUnavailable
)

func (k OutcomeKind) String() string {
	switch k {
	case KindRouteError:
		return "route_error"
	case KindTrainNotFound:
		return "train_not_found"
	case KindAvailable:
		return "available"
	case KindUnavailable:
		return "unavailable"
	default:
		return "transient"
	}
}

// Outcome is the sole output of Parse.
type Outcome struct {
	Kind OutcomeKind

	// ErrorText carries the extracted error-region text for
	// KindRouteError; empty otherwise.
	ErrorText string
}

// DefaultBaseURL is the route search page.
const DefaultBaseURL = "https://pass.rw.by/ru/route/"

// RouteURL builds the schedule page URL for a route on a travel date
// (date in "2006-01-02" form, as the site expects).
func RouteURL(base, from, to, date string) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseURL
	}
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	q.Set("date", date)
	return base + "?" + q.Encode()
}
