// Package cache holds the last successful feed snapshot for a bounded time
// so that repeated requests do not hit the upstream rate limit.
//
// One SnapshotCache serves one feed subscription. Concurrent callers that
// miss the cache share a single upstream fetch.
package cache
