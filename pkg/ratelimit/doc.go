// Package ratelimit provides rate limiting for gopace.
//
// Subpackages:
//   - bucket: token bucket limiter with lazy refill and wait-time reservations
//   - capacity: concurrency capacity limiter
//   - endpoint: per-endpoint keyed limiter registry
//   - adaptive: rate adjustment from provider response headers
package ratelimit
