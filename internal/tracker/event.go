// Package tracker turns probe and certificate observations into alert
// events. Both trackers compare against the most recent stored row only;
// the change key ties each event to the physical record that caused it,
// so re-evaluation (e.g., the startup backfill) dedups cleanly.
package tracker

// Event is an alert decision handed to the notifier.
type Event struct {
	ChangeType string // "uptime", "ssl" or "ssl_expiry"
	ChangeKey  string
	Message    string
	Subject    string
}
