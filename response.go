package smartbus

import (
	"encoding/json"

	"github.com/theoremus-urban-solutions/smartbus/gtfs"
	"github.com/theoremus-urban-solutions/smartbus/tracking"
	"github.com/theoremus-urban-solutions/smartbus/utils"
)

// BusesResponse is the /buses payload. When Error is set only the error
// member is serialized.
type BusesResponse struct {
	Entity    []tracking.MovementRecord `json:"entity"`
	Count     int                       `json:"count"`
	Vehicles  int                       `json:"vehicles"`
	FetchedAt float64                   `json:"fetched_at"`
	Reused    bool                      `json:"reused"`
	Error     string                    `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// MarshalJSON emits an empty entity array rather than null.
func (r BusesResponse) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(errorResponse{Error: r.Error})
	}
	type plain BusesResponse
	if r.Entity == nil {
		r.Entity = []tracking.MovementRecord{}
	}
	return json.Marshal(plain(r))
}

func newBusesResponse(res *CycleResult) BusesResponse {
	return BusesResponse{
		Entity:    res.Records,
		Count:     len(res.Records),
		Vehicles:  res.Vehicles,
		FetchedAt: utils.EpochSeconds(res.FetchedAt),
		Reused:    res.Reused,
	}
}

type healthResponse struct {
	Status                  string  `json:"status"`
	LatestGTFSRealtimeEpoch float64 `json:"latest_gtfsrt_epoch"`
	LastFetch               string  `json:"last_fetch,omitempty"`
	FeedTimestamp           string  `json:"feed_timestamp,omitempty"`
	ValidUntil              string  `json:"valid_until,omitempty"`
	RoutePrefix             string  `json:"route_prefix"`
	Vehicles                int     `json:"vehicles"`
}

type graphResponse struct {
	Nodes    int            `json:"nodes"`
	Edges    int            `json:"edges"`
	Segments []gtfs.Segment `json:"segments"`
}
