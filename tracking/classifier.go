package tracking

import (
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/smartbus/gtfsrt"
)

// Classifier compares each snapshot with the one it was given before.
// It holds at most one retained snapshot. A zero Classifier is ready to use.
type Classifier struct {
	mu      sync.Mutex
	prev    []gtfsrt.VehicleEntity
	prevAt  time.Time
	hasPrev bool
}

// NewClassifier returns a classifier with no retained snapshot.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify emits one record per entity of current that also appears in the
// retained snapshot, in the order of current. The first call has nothing to
// compare against and returns an empty slice. Every call retains current for
// the next one, whether or not anything matched.
func (c *Classifier) Classify(current []gtfsrt.VehicleEntity, now time.Time) []MovementRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := []MovementRecord{}
	if c.hasPrev {
		byKey := make(map[string]gtfsrt.VehicleEntity, len(c.prev))
		for _, p := range c.prev {
			k := p.JoinKey()
			if _, seen := byKey[k]; !seen {
				byKey[k] = p
			}
		}
		for _, cur := range current {
			p, ok := byKey[cur.JoinKey()]
			if !ok {
				continue
			}
			d := Displacement(p.Latitude, p.Longitude, cur.Latitude, cur.Longitude)
			records = append(records, MovementRecord{
				VehicleID:    cur.JoinKey(),
				RouteID:      cur.RouteID,
				Latitude:     cur.Latitude,
				Longitude:    cur.Longitude,
				Displacement: d,
				Status:       StatusFor(d),
				Timestamp:    cur.Timestamp,
			})
		}
	}

	c.prev = append([]gtfsrt.VehicleEntity(nil), current...)
	c.prevAt = now
	c.hasPrev = true
	return records
}

// Previous returns a copy of the retained snapshot and when it was stored.
func (c *Classifier) Previous() ([]gtfsrt.VehicleEntity, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasPrev {
		return nil, time.Time{}, false
	}
	return append([]gtfsrt.VehicleEntity(nil), c.prev...), c.prevAt, true
}

// Reset drops the retained snapshot.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prev = nil
	c.prevAt = time.Time{}
	c.hasPrev = false
}
