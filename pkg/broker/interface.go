// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package broker

import "context"

// Publisher defines the interface for publishing messages to a broker.
// Implementations publish one message at a time and resolve its confirmation
// before the next publish is issued.
type Publisher interface {
	// Publish sends a message and blocks until the broker confirmation is resolved.
	// A non-nil error means the message could not be written at all and the
	// session is no longer usable; a failed confirmation is reported through Outcome.
	Publish(context.Context, OutgoingMessage) (Outcome, error)

	// Close releases any resources held by the publisher, such as channels or connections.
	// After Close, further calls to Publish should return an error.
	Close() error
}

// Consumer defines the interface for consuming messages from a broker.
// Each implementation should manage its own delivery stream.
type Consumer interface {
	// Consume retrieves the next available message or an error if the consumer is
	// cancelled, closed or the context is done.
	// The returned Message must be acknowledged or rejected by the caller.
	Consume(context.Context) (Message, error)

	// Close stops message consumption and releases any resources.
	// After Close, subsequent calls to Consume should return an error.
	Close() error
}

// Message represents a single broker-delivered message, allowing inspection and acknowledgment.
// Implementations wrap the broker-specific delivery type.
type Message interface {
	// Headers returns the message headers as received, nil when none were attached.
	Headers() map[string]interface{}

	// ContentType returns the MIME type of the message payload.
	ContentType() string

	// MessageID returns the publisher assigned message identifier.
	MessageID() string

	// IsRedelivered signals if this delivery is a redelivery of a previous message.
	IsRedelivered() bool

	// Body returns the raw payload bytes.
	Body() []byte

	// RoutingKey returns the routing key the message was published with.
	RoutingKey() string

	// DeliveryTag returns the broker assigned tag used to acknowledge this delivery.
	DeliveryTag() uint64

	// Ack acknowledges successful processing of the message.
	// Only the first Ack or Reject reaches the broker.
	Ack() error

	// Reject rejects the message without requeueing it.
	Reject() error
}

// Handler processes a single delivery. Returning nil lets the caller acknowledge it.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(context.Context, Message) error

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// OperatorLoop decides whether another message should be sent.
type OperatorLoop interface {
	// Next reports whether to send again. An error ends the loop.
	Next(context.Context) (bool, error)
}
