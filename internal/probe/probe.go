package probe

import "context"

// Outcome is the unified result of a single reachability probe.
//
// StatusCode is the final HTTP status when one was obtained; 0 for
// timeouts and transport errors. Excerpt carries a bounded slice of the
// response body (or the error text) only when the probe is down.
type Outcome struct {
	Up         bool
	StatusCode int
	LatencyMS  int64
	Excerpt    *string
}

// Checker performs a single probe against a target URL. Implementations
// enforce their own timeout and never return an error past the caller:
// anything that goes wrong is a down Outcome.
type Checker interface {
	Check(ctx context.Context, url string) Outcome
}
