// Package ratelimit bounds per-client request rates on the public API.
package ratelimit

import (
	"strings"
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassWrite covers notarization and recheck requests, which spend
	// ledger fees or DNS queries.
	ClassWrite EndpointClass = "write"
	// ClassRead covers lookups and verification queries.
	ClassRead EndpointClass = "read"
	// ClassCallback covers authenticated ledger callbacks. It has no limit
	// unless one is configured explicitly.
	ClassCallback EndpointClass = "callback"
)

// Limit is a sliding window allowance.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result describes one rate limit decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is in whole seconds and only set when Allowed is false.
	RetryAfter int
}

// Key builds the bucket key for a client in a class.
func Key(class EndpointClass, client string) string {
	return "ratelimit:" + string(class) + ":" + sanitizeKeySegment(client)
}

// sanitizeKeySegment escapes ':' so a client identifier cannot address a
// neighbouring bucket.
func sanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
