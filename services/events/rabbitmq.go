package eventsvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

// amqpChannel is the subset of *amqp.Channel used to publish events.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes ingestion events to a topic exchange, routed by event type.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	appName  string
}

var _ ingest.Publisher = (*RabbitMQPublisher)(nil)

func NewRabbitMQPublisher(conf *core.Config) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(conf.Events.RabbitMQURL)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening rabbitmq channel")
	}

	pub, err := newRabbitMQPublisher(ch, conf)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	pub.conn = conn
	return pub, nil
}

func newRabbitMQPublisher(ch amqpChannel, conf *core.Config) (*RabbitMQPublisher, error) {
	if err := ch.ExchangeDeclare(conf.Events.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}
	return &RabbitMQPublisher{ch: ch, exchange: conf.Events.Exchange, appName: conf.AppName}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, evt ingest.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newPublishing(evt, p.appName)
	if err != nil {
		return err
	}
	return errors.Wrap(p.ch.Publish(p.exchange, evt.Type, false, false, msg), "publishing")
}

func (p *RabbitMQPublisher) Close() error {
	var chErr, connErr error
	if p.ch != nil {
		chErr = p.ch.Close()
	}
	if p.conn != nil {
		connErr = p.conn.Close()
	}
	if chErr != nil {
		return errors.Wrap(chErr, "closing rabbitmq channel")
	}
	return errors.Wrap(connErr, "closing rabbitmq connection")
}

func newPublishing(evt ingest.Event, appID string) (amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, errors.Wrap(err, "marshalling event")
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.RunID,
		Timestamp:    evt.OccurredAt,
		Type:         evt.Type,
		AppId:        appID,
		Body:         body,
	}, nil
}
