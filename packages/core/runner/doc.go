// Package runner executes collection requests against live servers and
// records the exchanges as a trace.
//
// It provides functionality for:
//   - Materializing requests with variable substitution and auth
//   - Sending them with an optional rate limit
//   - Running whole collections in traversal order
//   - Reporting progress through a Reporter
//
// A failed request is reported and left out of the trace. The run carries on
// unless Config.Bail is set.
package runner
