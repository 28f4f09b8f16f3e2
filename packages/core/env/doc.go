// Package env handles variable scopes and {{variable}} substitution for livespec.
//
// It provides functionality for:
//   - Merging collection, environment and override scopes (later scopes win)
//   - Single-pass, non-recursive {{variable}} interpolation
//   - Loading overrides from .env files, KEY=VALUE flags and the OS environment
//   - An optional fallback for dynamic names such as {{$guid}}
package env
