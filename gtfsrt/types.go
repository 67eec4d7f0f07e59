package gtfsrt

import "time"

// VehicleEntity is a normalized vehicle position report.
// Optional fields are empty strings when the feed omits them.
type VehicleEntity struct {
	ID          string  `json:"id"`
	TripID      string  `json:"trip_id"`
	RouteID     string  `json:"route_id"`
	DirectionID string  `json:"direction_id,omitempty"`
	StartTime   string  `json:"start_time,omitempty"`
	VehicleID   string  `json:"vehicle_id,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timestamp   float64 `json:"timestamp"` // epoch seconds
}

// JoinKey identifies a vehicle across snapshots: the vehicle id, or the
// entity id when the feed carries no vehicle descriptor.
func (e VehicleEntity) JoinKey() string {
	if e.VehicleID != "" {
		return e.VehicleID
	}
	return e.ID
}

// FeedSnapshot is the result of one successful fetch. It is never mutated
// after construction; a newer fetch produces a new snapshot.
type FeedSnapshot struct {
	Entities        []VehicleEntity
	FetchedAt       time.Time
	HeaderTimestamp int64 // feed header timestamp, 0 when absent
}
