// Package dedupe tracks recently seen request identifiers in a TTL cache
// so retried transport deliveries of the same request can be flagged.
package dedupe
