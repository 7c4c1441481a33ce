package search

// Event types published on the app bus. The storage subscriber maps them
// to search-log status transitions; nothing in this package depends on
// anyone listening.
const (
	EventAdmitted  = "search.admitted"
	EventRejected  = "search.rejected"
	EventConfirmed = "search.confirmed"
	EventFound     = "search.found"
	EventFailed    = "search.failed"
	EventCancelled = "search.cancelled"
)

// Event is the bus payload for every search lifecycle transition.
type Event struct {
	ID     string  `json:"id"`
	Req    Request `json:"req"`
	Reason string  `json:"reason,omitempty"`
}
