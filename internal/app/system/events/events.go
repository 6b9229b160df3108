// Package events publishes allocation decisions for downstream consumers
// such as the notification mailer.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/stratatopics/internal/domain/models"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Event types.
const (
	TypeSignupConfirmed  = "signup.confirmed"
	TypeSignupWaitlisted = "signup.waitlisted"
	TypeSignupDropped    = "signup.dropped"
	TypeSignupPromoted   = "signup.promoted"
	TypeTopicDeleted     = "topic.deleted"
)

// Event is the JSON payload published for one decision.
type Event struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	OccurredAt   time.Time            `json:"occurred_at"`
	AssignmentID primitive.ObjectID   `json:"assignment_id"`
	TopicID      primitive.ObjectID   `json:"topic_id"`
	TopicName    string               `json:"topic_name,omitempty"`
	TeamID       *primitive.ObjectID  `json:"team_id,omitempty"`
	TeamIDs      []primitive.ObjectID `json:"team_ids,omitempty"`
	ActorID      *primitive.ObjectID  `json:"actor_id,omitempty"`
}

// New builds an event of typ about team on topic. team may be zero for
// topic-level events.
func New(typ string, topic models.Topic, team primitive.ObjectID) Event {
	ev := Event{
		ID:           uuid.NewString(),
		Type:         typ,
		OccurredAt:   time.Now().UTC(),
		AssignmentID: topic.AssignmentID,
		TopicID:      topic.ID,
		TopicName:    topic.Name,
	}
	if !team.IsZero() {
		ev.TeamID = &team
	}
	return ev
}

// WithActor records who triggered the event.
func (e Event) WithActor(id primitive.ObjectID) Event {
	if !id.IsZero() {
		e.ActorID = &id
	}
	return e
}

// Publisher sends events. Publish must not block on a slow consumer.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSPublisher publishes events as core NATS messages on
// "<prefix>.<type>".
type NATSPublisher struct {
	nc     conn
	prefix string
	log    *zap.Logger
}

// Connect dials url and returns a publisher. The connection keeps
// reconnecting in the background; publishes made while disconnected are
// buffered by the client.
func Connect(url, prefix string, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("stratatopics"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return newNATSPublisher(nc, prefix, log), nil
}

func newNATSPublisher(nc conn, prefix string, log *zap.Logger) *NATSPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "stratatopics"
	}
	return &NATSPublisher{nc: nc, prefix: prefix, log: log}
}

// Subject returns the subject events of typ are published on.
func (p *NATSPublisher) Subject(typ string) string {
	return p.prefix + "." + typ
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Type == "" {
		return errors.New("event type is required")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.nc.Publish(p.Subject(ev.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	p.log.Debug("event published", zap.String("type", ev.Type), zap.String("event_id", ev.ID))
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
