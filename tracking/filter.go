package tracking

import (
	"strings"

	"github.com/theoremus-urban-solutions/smartbus/gtfsrt"
)

// FilterByRoutePrefix keeps the entities whose route id starts with prefix,
// in their original order. Entities without a route id never match, even for
// an empty prefix. Duplicates pass through.
func FilterByRoutePrefix(entities []gtfsrt.VehicleEntity, prefix string) []gtfsrt.VehicleEntity {
	out := make([]gtfsrt.VehicleEntity, 0, len(entities))
	for _, e := range entities {
		if e.RouteID == "" || !strings.HasPrefix(e.RouteID, prefix) {
			continue
		}
		out = append(out, e)
	}
	return out
}
