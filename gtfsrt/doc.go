// Package gtfsrt fetches and decodes GTFS-Realtime vehicle position feeds.
//
// Upstream feeds are served either as Protocol Buffer encoded FeedMessage
// payloads or as a JSON mirror with the same logical shape. Both are
// normalized into VehicleEntity values behind the Decoder interface.
//
// The main type is Client, which performs a single request per Fetch and
// reports failures using the error types in errors.go.
package gtfsrt
