package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/theoremus-urban-solutions/smartbus/tracking"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "smartbus.movements"

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

type NATSPublisher struct {
	nc      conn
	subject string
	metrics PublisherMetrics
	newID   func() string
}

func NewNATSPublisher(url, subject string, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("smartbus"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newPublisher(nc, subject, m), nil
}

func newPublisher(nc conn, subject string, m PublisherMetrics) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{nc: nc, subject: subject, metrics: m, newID: uuid.NewString}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// CycleMessage carries the records of one classification cycle.
type CycleMessage struct {
	CycleID     string                    `json:"cycleId"`
	RoutePrefix string                    `json:"routePrefix"`
	FetchedAt   time.Time                 `json:"fetchedAt"`
	Count       int                       `json:"count"`
	Records     []tracking.MovementRecord `json:"records"`
}

// Subject returns the subject a cycle for routePrefix is published on.
func (p *NATSPublisher) Subject(routePrefix string) string {
	if routePrefix == "" {
		return p.subject
	}
	return fmt.Sprintf("%s.%s", p.subject, subjectToken(routePrefix))
}

// PublishCycle sends one message for the cycle and returns its id.
func (p *NATSPublisher) PublishCycle(routePrefix string, fetchedAt time.Time, records []tracking.MovementRecord) (string, error) {
	msg := CycleMessage{
		CycleID:     p.newID(),
		RoutePrefix: routePrefix,
		FetchedAt:   fetchedAt.UTC(),
		Count:       len(records),
		Records:     records,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	subject := p.Subject(routePrefix)
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", subject, err)
	}
	log.WithFields(log.Fields{"subject": subject, "cycle_id": msg.CycleID, "count": msg.Count}).Debug("nats publish")
	return msg.CycleID, nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
