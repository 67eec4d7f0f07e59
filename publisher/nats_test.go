package publisher

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/smartbus/tracking"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
	closed   bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Drain() error { f.drained = true; return nil }
func (f *fakeConn) Close()       { f.closed = true }

type fakeMetrics struct{ ok, failed, observed int }

func (m *fakeMetrics) NATSPublishedInc()            { m.ok++ }
func (m *fakeMetrics) NATSPublishErrInc()           { m.failed++ }
func (m *fakeMetrics) PublishObserve(time.Duration) { m.observed++ }
func (m *fakeMetrics) NATSSetConnected(bool)        {}

func TestPublishCycle(t *testing.T) {
	nc := &fakeConn{}
	m := &fakeMetrics{}
	p := newPublisher(nc, "", m)
	p.newID = func() string { return "cycle-1" }

	records := []tracking.MovementRecord{{VehicleID: "V1", RouteID: "4820_1", Status: tracking.Slow}}
	id, err := p.PublishCycle("4820", time.Unix(1700000000, 0), records)
	require.NoError(t, err)
	assert.Equal(t, "cycle-1", id)
	require.Equal(t, []string{"smartbus.movements.4820"}, nc.subjects)

	var msg CycleMessage
	require.NoError(t, json.Unmarshal(nc.payloads[0], &msg))
	assert.Equal(t, "cycle-1", msg.CycleID)
	assert.Equal(t, 1, msg.Count)
	assert.Equal(t, tracking.Slow, msg.Records[0].Status)
	assert.True(t, msg.FetchedAt.Equal(time.Unix(1700000000, 0)))
	assert.Equal(t, 1, m.ok)
	assert.Equal(t, 1, m.observed)

	p.Close()
	assert.True(t, nc.drained)
	assert.True(t, nc.closed)
}

func TestPublishCycle_Error(t *testing.T) {
	m := &fakeMetrics{}
	p := newPublisher(&fakeConn{err: errors.New("nats: connection closed")}, "bus", m)

	_, err := p.PublishCycle("", time.Now(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish bus")
	assert.Equal(t, 1, m.failed)
}

func TestPublishCycle_DefaultIDIsUUID(t *testing.T) {
	p := newPublisher(&fakeConn{}, "bus", nil)
	id, err := p.PublishCycle("", time.Now(), nil)
	require.NoError(t, err)
	assert.Len(t, id, 36)
}

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"4820":      "4820",
		" 48.20 ":   "48_20",
		"a b>c*d/e": "a_b_c_d_e",
		"":          "_",
	}
	for in, want := range tests {
		assert.Equal(t, want, subjectToken(in), "input %q", in)
	}
}
