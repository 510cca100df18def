package notify

import "strings"

// Event classifies an operator alert so configuration can filter delivery.
type Event string

const (
	// EventConnectorFailed fires when a venue connector exhausts its
	// reconnect budget and goes terminal.
	EventConnectorFailed Event = "connector_failed"

	// EventOpportunity fires for detected arbitrage opportunities.
	EventOpportunity Event = "opportunity"

	// EventArchive fires after an archive cycle exports records.
	EventArchive Event = "archive"
)

// EventsFromStrings converts configured event names into typed Events.
// Unknown names pass through unchanged; the filter simply never matches
// them.
func EventsFromStrings(names []string) []Event {
	events := make([]Event, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			events = append(events, Event(n))
		}
	}
	return events
}
