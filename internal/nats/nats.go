// Package nats publishes hub snapshots and lifecycle events to a NATS server.
// It is an alternative sink to the MQTT publisher and shares its payloads.
package nats

import (
	"fmt"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/sweeney/smartstall-hub/internal/logger"
	"github.com/sweeney/smartstall-hub/internal/logic"
	"github.com/sweeney/smartstall-hub/internal/mqtt"
)

// conn is the subset of *natsgo.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
	Flush() error
	IsConnected() bool
	Close()
}

// Subject maps an MQTT-style topic onto a NATS subject.
func Subject(topic string) string {
	return strings.ReplaceAll(strings.Trim(topic, "/"), "/", ".")
}

// Publisher implements mqtt.Publisher on top of a NATS connection.
type Publisher struct {
	nc            conn
	subject       string
	systemSubject string
}

var _ mqtt.Publisher = (*Publisher)(nil)

// NewPublisher connects to url. The client reconnects forever; messages
// published while disconnected are held in the client's reconnect buffer.
func NewPublisher(url, name string) (*Publisher, error) {
	nc, err := natsgo.Connect(url,
		natsgo.Name(name),
		natsgo.Timeout(10*time.Second),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(5*time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			logger.Warn().Err(err).Msg("nats: disconnected")
		}),
		natsgo.ReconnectHandler(func(c *natsgo.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats: reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return newPublisher(nc), nil
}

func newPublisher(nc conn) *Publisher {
	return &Publisher{
		nc:            nc,
		subject:       Subject(mqtt.Topic),
		systemSubject: Subject(mqtt.TopicSystem),
	}
}

// Publish sends a stall snapshot.
func (p *Publisher) Publish(snap logic.Snapshot) error {
	payload, err := mqtt.FormatPayload(snap)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	if err := p.nc.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a hub lifecycle event. Retention has no core NATS
// equivalent and is ignored.
func (p *Publisher) PublishSystem(event mqtt.SystemEvent) error {
	payload, err := mqtt.FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if err := p.nc.Publish(p.systemSubject, payload); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the NATS connection is up.
func (p *Publisher) IsConnected() bool {
	return p.nc.IsConnected()
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	var err error
	if p.nc.IsConnected() {
		err = p.nc.Flush()
	}
	p.nc.Close()
	return err
}
