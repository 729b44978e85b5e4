// internal/adapters/out/nats/claim_events.go
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	appclaim "tokenclaim/internal/application/claim"
)

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
}

// ClaimEventPublisher publishes claim outcomes as JSON on
// "<subject>.issued" and "<subject>.rejected".
type ClaimEventPublisher struct {
	conn    conn
	subject string
	closeFn func()
}

var _ appclaim.EventPublisher = (*ClaimEventPublisher)(nil)

// Connect dials NATS with reconnects enabled.
func Connect(url, subject string) (*ClaimEventPublisher, error) {
	log := logrus.WithField("component", "claim_events")

	nc, err := nats.Connect(url,
		nats.Name("tokenclaim"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("claim_events: connect: %w", err)
	}

	p := NewClaimEventPublisher(nc, subject)
	p.closeFn = nc.Close
	return p, nil
}

func NewClaimEventPublisher(c conn, subject string) *ClaimEventPublisher {
	s := strings.Trim(strings.TrimSpace(subject), ".")
	if s == "" {
		s = "tokenclaim.events"
	}
	return &ClaimEventPublisher{conn: c, subject: s}
}

// Subject returns the subject an event type is published on.
func (p *ClaimEventPublisher) Subject(eventType string) string {
	suffix := strings.TrimPrefix(eventType, "claim.")
	return p.subject + "." + suffix
}

func (p *ClaimEventPublisher) Publish(_ context.Context, ev appclaim.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("claim_events: marshal: %w", err)
	}
	if err := p.conn.Publish(p.Subject(ev.Type), data); err != nil {
		return fmt.Errorf("claim_events: publish: %w", err)
	}
	return nil
}

func (p *ClaimEventPublisher) Close() {
	if p != nil && p.closeFn != nil {
		p.closeFn()
	}
}

// Noop drops events; used when NATS_URL is unset.
type Noop struct{}

func (Noop) Publish(context.Context, appclaim.Event) error { return nil }
