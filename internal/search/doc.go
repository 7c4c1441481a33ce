// Package search owns the ticket-availability monitor: per-user admission
// of search requests, the worker loop that polls the schedule page until
// a ticket goes on sale, and cooperative cancellation.
//
// One Registry instance owns all active searches for the process. State
// is memory-only: a restart drops every in-flight search (the sqlite log
// keeps history for the user, it is not a resume queue).
package search
