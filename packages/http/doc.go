// Package http provides the HTTP client livespec uses to execute collection
// requests.
//
// It wraps the standard library's http package with additional features:
//   - Trust-everyone TLS by default (opt back in with WithValidateSSL)
//   - Redirect handling and optional per-client timeout
//   - Ordered request and response headers
//   - Wall-clock timing of the round trip
package http
