package smartbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/theoremus-urban-solutions/smartbus/gtfsrt"
	"github.com/theoremus-urban-solutions/smartbus/tracking"
)

// SnapshotSource yields the current feed snapshot. *cache.SnapshotCache satisfies it.
type SnapshotSource interface {
	GetOrFetch(ctx context.Context, now time.Time) (*gtfsrt.FeedSnapshot, error)
}

// Metrics receives per-cycle outcomes. *metrics.Collector satisfies it.
type Metrics interface {
	CycleObserved(d time.Duration, vehicles int, records []tracking.MovementRecord)
	CycleFailed(kind string)
}

// Publisher forwards fresh cycles. *publisher.NATSPublisher satisfies it.
type Publisher interface {
	PublishCycle(routePrefix string, fetchedAt time.Time, records []tracking.MovementRecord) (string, error)
}

// CycleResult is the output of one pipeline run.
type CycleResult struct {
	Records   []tracking.MovementRecord
	Vehicles  int
	FetchedAt time.Time
	// HeaderTimestamp is the feed header time in Unix seconds, 0 when absent.
	HeaderTimestamp int64
	// Reused is set when the records of an earlier cycle were returned
	// because the snapshot was already classified or older than the last one.
	Reused  bool
	CycleID string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now, for virtual clocks in tests and replays.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithMetrics attaches a per-cycle metrics sink.
func WithMetrics(mt Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// WithPublisher forwards every freshly classified cycle to p.
func WithPublisher(p Publisher) Option {
	return func(m *Monitor) { m.publisher = p }
}

// Monitor runs the fetch, filter and classify pipeline. It is safe for
// concurrent use; classification is serialized.
type Monitor struct {
	source      SnapshotSource
	classifier  *tracking.Classifier
	routePrefix string
	now         func() time.Time
	metrics     Metrics
	publisher   Publisher

	mu       sync.Mutex
	lastSnap *gtfsrt.FeedSnapshot
	last     *CycleResult
}

// NewMonitor builds a pipeline over source for one route prefix. A nil
// classifier selects a new one.
func NewMonitor(source SnapshotSource, classifier *tracking.Classifier, routePrefix string, opts ...Option) *Monitor {
	if classifier == nil {
		classifier = tracking.NewClassifier()
	}
	m := &Monitor{
		source:      source,
		classifier:  classifier,
		routePrefix: routePrefix,
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// RoutePrefix returns the route id prefix this monitor filters on.
func (m *Monitor) RoutePrefix() string { return m.routePrefix }

// Cycle runs the pipeline once. On error nothing is retained, so the next
// cycle compares against the last successful one.
func (m *Monitor) Cycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	now := m.now()

	snap, err := m.source.GetOrFetch(ctx, now)
	if err != nil {
		kind := ErrorKind(err)
		if m.metrics != nil {
			m.metrics.CycleFailed(kind)
		}
		log.WithError(err).WithField("kind", kind).Warn("feed cycle failed")
		return nil, err
	}

	m.mu.Lock()
	// A cycle that overlapped a newer one may hold an older snapshot; it is
	// never classified against the newer state.
	if m.last != nil && (snap == m.lastSnap || snap.FetchedAt.Before(m.lastSnap.FetchedAt)) {
		res := *m.last
		m.mu.Unlock()
		res.Records = append([]tracking.MovementRecord(nil), res.Records...)
		res.Reused = true
		return &res, nil
	}
	vehicles := tracking.FilterByRoutePrefix(snap.Entities, m.routePrefix)
	records := m.classifier.Classify(vehicles, now)
	res := &CycleResult{
		Records:         records,
		Vehicles:        len(vehicles),
		FetchedAt:       snap.FetchedAt,
		HeaderTimestamp: snap.HeaderTimestamp,
	}
	m.lastSnap = snap
	m.last = res
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.CycleObserved(time.Since(start), len(vehicles), records)
	}
	log.WithFields(log.Fields{
		"entities": len(snap.Entities),
		"vehicles": len(vehicles),
		"records":  len(records),
	}).Debug("feed cycle classified")

	out := *res
	out.Records = append([]tracking.MovementRecord(nil), records...)
	if m.publisher != nil {
		id, err := m.publisher.PublishCycle(m.routePrefix, snap.FetchedAt, records)
		if err != nil {
			log.WithError(err).Warn("publish cycle failed")
		} else {
			out.CycleID = id
		}
	}
	return &out, nil
}

// LastCycle returns the most recent successful cycle.
func (m *Monitor) LastCycle() (CycleResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return CycleResult{}, false
	}
	res := *m.last
	res.Records = append([]tracking.MovementRecord(nil), res.Records...)
	return res, true
}

// GetBuses runs one cycle and shapes it for the dashboard.
func (m *Monitor) GetBuses(ctx context.Context) BusesResponse {
	res, err := m.Cycle(ctx)
	if err != nil {
		return BusesResponse{Error: UserMessage(err)}
	}
	return newBusesResponse(res)
}

// UserMessage renders a pipeline error as the short text shown to users.
func UserMessage(err error) string {
	var (
		rl *gtfsrt.RateLimitedError
		ue *gtfsrt.UpstreamError
		te *gtfsrt.TransportError
		de *gtfsrt.DecodeError
	)
	switch {
	case errors.As(err, &rl):
		return gtfsrt.RateLimitMessage
	case errors.As(err, &ue):
		return fmt.Sprintf("GTFS fetch failed (%d)", ue.StatusCode)
	case errors.As(err, &te):
		return fmt.Sprintf("GTFS request failed: %v", te.Err)
	case errors.As(err, &de):
		return fmt.Sprintf("GTFS feed could not be decoded: %v", de.Err)
	default:
		return err.Error()
	}
}

// ErrorKind labels an error for metrics.
func ErrorKind(err error) string {
	var (
		rl *gtfsrt.RateLimitedError
		ue *gtfsrt.UpstreamError
		te *gtfsrt.TransportError
		de *gtfsrt.DecodeError
	)
	switch {
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.As(err, &ue):
		return "upstream"
	case errors.As(err, &te):
		return "transport"
	case errors.As(err, &de):
		return "decode"
	default:
		return "other"
	}
}
