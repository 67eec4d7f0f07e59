// Package smartbus wires the live vehicle feed, the snapshot cache and the
// delay classifier into one polling pipeline, and serves its output over
// HTTP.
//
// A Monitor owns one cache and one classifier for one feed subscription.
// Each Cycle reads the cached snapshot (fetching when it is older than the
// TTL), narrows it to the configured route prefix and classifies it against
// the previous cycle.
package smartbus
