package search

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// InputErrorKind tells the router which correction hint to show.
type InputErrorKind int

const (
	BadShape InputErrorKind = iota // wrong number of parameters
	BadSyntax                      // date or time doesn't parse
	PastDeparture
)

// InputError is a user-correctable input problem: wrong shape, wrong
// syntax, or a departure in the past. Reported immediately; a request
// carrying one is never admitted and consumes no slot.
type InputError struct {
	Kind   InputErrorKind
	Reason string
}

func (e *InputError) Error() string { return "input error: " + e.Reason }

// ParseRequest splits free-form "From To Date Time" text into a Request
// (chat/user fields left for the caller). Syntax only; timing is checked
// separately so tests can pin the clock.
func ParseRequest(text string) (Request, error) {
	fields := strings.Fields(text)
	if len(fields) != 4 {
		return Request{}, &InputError{Kind: BadShape, Reason: fmt.Sprintf("expected 4 parameters, got %d", len(fields))}
	}

	req := Request{From: fields[0], To: fields[1], Date: fields[2], Time: fields[3]}

	if _, err := time.Parse(DateLayout, req.Date); err != nil {
		return Request{}, &InputError{Kind: BadSyntax, Reason: "bad date format: " + req.Date}
	}
	// Exactly "HH:MM": time.Parse alone accepts "7:44", the schedule page
	// renders zero-padded times and the parser matches them verbatim.
	if len(req.Time) != len(TimeLayout) {
		return Request{}, &InputError{Kind: BadSyntax, Reason: "bad time format: " + req.Time}
	}
	if _, err := time.Parse(TimeLayout, req.Time); err != nil {
		return Request{}, &InputError{Kind: BadSyntax, Reason: "bad time format: " + req.Time}
	}

	return req, nil
}

// ValidateTiming rejects departures in the past relative to now (which
// must already be in the service timezone).
func ValidateTiming(req Request, now time.Time) error {
	d, err := time.ParseInLocation(DateLayout, req.Date, now.Location())
	if err != nil {
		return &InputError{Kind: BadSyntax, Reason: "bad date format: " + req.Date}
	}
	t, err := time.Parse(TimeLayout, req.Time)
	if err != nil {
		return &InputError{Kind: BadSyntax, Reason: "bad time format: " + req.Time}
	}

	departure := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if departure.Before(now) {
		return &InputError{Kind: PastDeparture, Reason: "departure time is in the past"}
	}
	return nil
}
