// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp091.Channel used by the adapter.
type Channel interface {
	Confirm(noWait bool) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	NotifyPublish(confirm chan amqp091.Confirmation) chan amqp091.Confirmation
	NotifyReturn(c chan amqp091.Return) chan amqp091.Return
	NotifyCancel(c chan string) chan string
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	ExchangeDelete(name string, ifUnused, noWait bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error)
	IsClosed() bool
	Close() error
}

// Connection is the subset of *amqp091.Connection used by the adapter.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// DialFunc opens a connection to the broker.
type DialFunc func(url string, cfg amqp091.Config) (Connection, error)

// amqpConnection adapts *amqp091.Connection to Connection.
type amqpConnection struct {
	*amqp091.Connection
}

// Channel opens a new channel on the wrapped connection.
func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}

	return ch, nil
}

// dialAMQP is the DialFunc backed by amqp091.DialConfig.
func dialAMQP(url string, cfg amqp091.Config) (Connection, error) {
	con, err := amqp091.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}

	return amqpConnection{Connection: con}, nil
}
