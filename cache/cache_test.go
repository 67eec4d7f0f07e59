package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/smartbus/gtfsrt"
)

type fakeFetcher struct {
	calls   atomic.Int32
	err     error
	gate    chan struct{} // when set, Fetch blocks until closed
	started chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*gtfsrt.FeedSnapshot, error) {
	n := f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return &gtfsrt.FeedSnapshot{
		Entities: []gtfsrt.VehicleEntity{{ID: "E", VehicleID: "V", Latitude: float64(n)}},
	}, nil
}

type countingMetrics struct{ hits, misses atomic.Int32 }

func (m *countingMetrics) CacheHit()  { m.hits.Add(1) }
func (m *countingMetrics) CacheMiss() { m.misses.Add(1) }

var t0 = time.Unix(1700000000, 0)

func TestSnapshotCache_HitWithinTTL(t *testing.T) {
	f := &fakeFetcher{}
	m := &countingMetrics{}
	c := New(f, DefaultTTL, WithMetrics(m))

	first, err := c.GetOrFetch(context.Background(), t0)
	require.NoError(t, err)

	for _, offset := range []time.Duration{0, time.Second, 30 * time.Second, 59999 * time.Millisecond} {
		got, err := c.GetOrFetch(context.Background(), t0.Add(offset))
		require.NoError(t, err)
		assert.Same(t, first, got, "offset %v", offset)
	}
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, int32(4), m.hits.Load())
	assert.Equal(t, int32(1), m.misses.Load())
}

func TestSnapshotCache_RefreshAtTTL(t *testing.T) {
	f := &fakeFetcher{}
	c := New(f, 60*time.Second)

	first, err := c.GetOrFetch(context.Background(), t0)
	require.NoError(t, err)

	second, err := c.GetOrFetch(context.Background(), t0.Add(60*time.Second))
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), f.calls.Load())

	_, at, ok := c.Peek()
	require.True(t, ok)
	assert.Equal(t, t0.Add(60*time.Second), at)

	// The refreshed slot is served for the next window.
	third, err := c.GetOrFetch(context.Background(), t0.Add(90*time.Second))
	require.NoError(t, err)
	assert.Same(t, second, third)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestSnapshotCache_FailureKeepsStaleSlot(t *testing.T) {
	f := &fakeFetcher{}
	c := New(f, 10*time.Second)

	first, err := c.GetOrFetch(context.Background(), t0)
	require.NoError(t, err)

	f.err = &gtfsrt.RateLimitedError{}
	got, err := c.GetOrFetch(context.Background(), t0.Add(20*time.Second))
	assert.Nil(t, got)
	var rl *gtfsrt.RateLimitedError
	require.True(t, errors.As(err, &rl))

	stale, at, ok := c.Peek()
	require.True(t, ok)
	assert.Same(t, first, stale)
	assert.Equal(t, t0, at)

	// Every call after the TTL retries upstream until it succeeds.
	_, err = c.GetOrFetch(context.Background(), t0.Add(21*time.Second))
	require.Error(t, err)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestSnapshotCache_EmptyFailure(t *testing.T) {
	c := New(&fakeFetcher{err: errors.New("down")}, 0)
	assert.Equal(t, DefaultTTL, c.TTL())

	_, err := c.GetOrFetch(context.Background(), t0)
	require.Error(t, err)
	_, _, ok := c.Peek()
	assert.False(t, ok)
}

func TestSnapshotCache_ConcurrentMissSharesFetch(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{}), started: make(chan struct{}, 16)}
	c := New(f, DefaultTTL)

	const callers = 8
	results := make([]*gtfsrt.FeedSnapshot, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := c.GetOrFetch(context.Background(), t0)
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}

	<-f.started
	// Give the remaining goroutines time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestSnapshotCache_CanceledCallerDoesNotAbortFetch(t *testing.T) {
	var seen context.Context
	fetch := fetcherFunc(func(ctx context.Context) (*gtfsrt.FeedSnapshot, error) {
		seen = ctx
		return &gtfsrt.FeedSnapshot{}, nil
	})
	c := New(fetch, DefaultTTL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetOrFetch(ctx, t0)
	require.NoError(t, err)
	assert.NoError(t, seen.Err())
}

type fetcherFunc func(ctx context.Context) (*gtfsrt.FeedSnapshot, error)

func (f fetcherFunc) Fetch(ctx context.Context) (*gtfsrt.FeedSnapshot, error) { return f(ctx) }
