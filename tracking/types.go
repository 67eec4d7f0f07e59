package tracking

import (
	"fmt"
	"math"
)

// Displacement bands in degrees. Each band includes its lower bound.
const (
	DelayedThreshold = 0.00003
	SlowThreshold    = 0.0001
)

// Status is the movement classification of one vehicle.
type Status int

const (
	Normal Status = iota
	Slow
	Delayed
)

func (s Status) String() string {
	switch s {
	case Normal:
		return "normal"
	case Slow:
		return "slow"
	case Delayed:
		return "delayed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText renders the status as its lowercase name.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case Normal, Slow, Delayed:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
}

// UnmarshalText parses a lowercase status name.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*s = Normal
	case "slow":
		*s = Slow
	case "delayed":
		*s = Delayed
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}

// MovementRecord is the classification of one vehicle for one cycle.
type MovementRecord struct {
	VehicleID    string  `json:"vehicle_id"`
	RouteID      string  `json:"route_id"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Displacement float64 `json:"displacement"`
	Status       Status  `json:"status"`
	Timestamp    float64 `json:"timestamp"`
}

// StatusFor maps a displacement to its band.
func StatusFor(d float64) Status {
	switch {
	case d < DelayedThreshold:
		return Delayed
	case d < SlowThreshold:
		return Slow
	default:
		return Normal
	}
}

// Displacement is the Euclidean distance between two positions in degrees.
func Displacement(prevLat, prevLon, lat, lon float64) float64 {
	dLat := lat - prevLat
	dLon := lon - prevLon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}
