// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"time"

	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// newPublishing maps PublisherConfig and an outgoing message into an AMQP publishing.
// The headers property is only set when the message carries a header map.
func newPublishing(cfg PublisherConfig, msg broker.OutgoingMessage) amqp091.Publishing {
	pub := amqp091.Publishing{
		ContentType: mimetype.Detect(msg.Body).String(),
		Body:        msg.Body,
		AppId:       cfg.AppId,
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now(),
	}

	if msg.Headers != nil {
		pub.Headers = amqp091.Table(msg.Headers)
	}

	if cfg.MessagePersistent {
		pub.DeliveryMode = amqp091.Persistent
	}

	return pub
}
