// This file contains the implementation of AMQPPublisher. This service is responsible for announcing user lifecycle events
// (created, updated, deleted) on an AMQP 0.9.1 topic exchange so other services can react to changes without polling MongoDB.
//
// Publishing is best effort: the HTTP response never depends on it. Every broker round trip, re-dialing included,
// is bounded by the caller's context. After a failed dial the publisher fails fast for redialBackoff instead of
// dialing again on every request, so a broker outage costs a write request at most one bounded dial.

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/users-api/webserver/internal/log"
	"github.com/users-api/webserver/internal/models/user"
)

// ErrBrokerUnavailable is returned while the publisher is backing off after a failed dial.
var ErrBrokerUnavailable = errors.New("message broker unavailable")

// redialBackoff is how long the publisher waits after a failed dial before trying again.
const redialBackoff = 5 * time.Second

// Event types, also used as routing keys.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// UserEvent is the JSON payload published for every change.
type UserEvent struct {
	Type       string     `json:"type"`
	UserID     string     `json:"userId,omitempty"`
	User       *user.User `json:"user,omitempty"`
	Name       string     `json:"name,omitempty"`
	Count      int64      `json:"count,omitempty"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// NewUserEvent builds an event about a single user.
func NewUserEvent(eventType string, u *user.User) UserEvent {
	return UserEvent{
		Type:       eventType,
		UserID:     u.ID.Hex(),
		User:       u,
		OccurredAt: time.Now().UTC(),
	}
}

// NewBulkDeleteEvent builds the event for a delete-by-name that removed count users.
func NewBulkDeleteEvent(name string, count int64) UserEvent {
	return UserEvent{
		Type:       EventUserDeleted,
		Name:       name,
		Count:      count,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher publishes user events.
type EventPublisher interface {
	Publish(ctx context.Context, event UserEvent) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, UserEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }

// AMQPPublisher publishes events to a durable topic exchange.
type AMQPPublisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration
	logger      *log.Logger
	// sem guards connection and channel. It is a channel rather than a mutex so waiting honors ctx.
	sem        chan struct{}
	connection *amqp.Connection
	channel    *amqp.Channel
	retryAt    time.Time
}

func newAMQPPublisher(url, exchange string, dialTimeout time.Duration, logger *log.Logger) *AMQPPublisher {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &AMQPPublisher{
		url:         url,
		exchange:    exchange,
		dialTimeout: dialTimeout,
		logger:      logger,
		sem:         make(chan struct{}, 1),
	}
}

// NewAMQPPublisher connects to the broker, retrying until startupTimeout has passed, and declares the exchange.
func NewAMQPPublisher(url, exchange string, startupTimeout time.Duration, logger *log.Logger) (*AMQPPublisher, error) {
	p := newAMQPPublisher(url, exchange, 5*time.Second, logger)

	deadline := time.Now().Add(startupTimeout)
	var err error
	for {
		err = p.connect(p.dialTimeout)
		if err == nil || time.Now().After(deadline) {
			break
		}
		logger.Infof("RabbitMQ not reachable yet: %v", err)
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// connect opens a connection and channel and declares the exchange. The TCP dial and the AMQP handshake
// together may take at most timeout. Callers must hold p.sem or own p exclusively.
func (p *AMQPPublisher) connect(timeout time.Duration) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:   amqp.DefaultDial(timeout),
		Locale: "en_US",
	})
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}

	p.connection = conn
	p.channel = ch
	return nil
}

// ensureConnection re-dials if the connection or channel has been closed. The dial is bounded by
// both p.dialTimeout and ctx, and is skipped entirely while backing off from a previous failure.
func (p *AMQPPublisher) ensureConnection(ctx context.Context) error {
	if p.connection != nil && !p.connection.IsClosed() && p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	if time.Now().Before(p.retryAt) {
		return ErrBrokerUnavailable
	}

	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ctx.Err()
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	p.logger.Info("Reconnecting to RabbitMQ...")
	if p.connection != nil {
		p.connection.Close()
	}
	if err := p.connect(timeout); err != nil {
		p.retryAt = time.Now().Add(redialBackoff)
		return err
	}
	return nil
}

// Publish sends the event to the exchange with its type as routing key. It returns no later than ctx's deadline.
func (p *AMQPPublisher) Publish(ctx context.Context, event UserEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.sem }()

	if err := p.ensureConnection(ctx); err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	p.logger.Debugf("Published %s event", event.Type)
	return nil
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	p.logger.Info("Shutting down AMQP publisher...")
	if p.connection == nil || p.connection.IsClosed() {
		return nil
	}
	return p.connection.Close()
}
