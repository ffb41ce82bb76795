// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"sync/atomic"

	"github.com/rabbitmq/amqp091-go"
)

// Message wraps an AMQP delivery and tracks acknowledgment state.
// Only the first Ack or Reject is sent to the broker.
type Message struct {
	// deliver holds the original AMQP delivery metadata and payload.
	deliver amqp091.Delivery
	// completed flips on the first Ack or Reject.
	completed atomic.Bool
	// session serializes the acknowledgment with a concurrent close.
	session *Session
}

// RoutingKey returns the message routing key set on the AMQP delivery.
func (m *Message) RoutingKey() string {
	return m.deliver.RoutingKey
}

// Headers returns the message headers set on the AMQP delivery.
func (m *Message) Headers() map[string]interface{} {
	return m.deliver.Headers
}

// ContentType returns the MIME content type of the message payload.
func (m *Message) ContentType() string {
	return m.deliver.ContentType
}

// MessageID returns the publisher assigned message id.
func (m *Message) MessageID() string {
	return m.deliver.MessageId
}

// IsRedelivered indicates if the delivery is a redelivery (duplicate) of a previous message.
func (m *Message) IsRedelivered() bool {
	return m.deliver.Redelivered
}

// Body returns the raw message payload as a byte slice.
func (m *Message) Body() []byte {
	return m.deliver.Body
}

// DeliveryTag returns the broker assigned delivery tag.
func (m *Message) DeliveryTag() uint64 {
	return m.deliver.DeliveryTag
}

// Ack acknowledges this single delivery. Calls after the first Ack or
// Reject are no-ops. A failure is returned as *AckError.
func (m *Message) Ack() error {
	if !m.completed.CompareAndSwap(false, true) {
		return nil
	}

	return m.settle(func() error {
		return m.deliver.Ack(false)
	})
}

// Reject rejects this single delivery without requeueing it. Calls after the
// first Ack or Reject are no-ops. A failure is returned as *AckError.
func (m *Message) Reject() error {
	if !m.completed.CompareAndSwap(false, true) {
		return nil
	}

	return m.settle(func() error {
		return m.deliver.Reject(false)
	})
}

func (m *Message) settle(fn func() error) error {
	var err error

	if m.session != nil {
		m.session.mute.Lock()
		err = fn()
		m.session.mute.Unlock()
	} else {
		err = fn()
	}

	if err != nil {
		return &AckError{DeliveryTag: m.deliver.DeliveryTag, Err: err}
	}

	return nil
}
