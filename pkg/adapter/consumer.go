// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer manages message consumption from a RabbitMQ queue.
// It turns the channel's delivery stream into a pull API.
type Consumer struct {
	// session owns the channel the subscription lives on.
	session *Session
	// deliveries streams incoming deliveries in arrival order.
	deliveries <-chan amqp091.Delivery
	// cancels receives the consumer tag when the broker revokes the subscription.
	cancels chan string
	// cfg stores consumer configuration such as queue name and args.
	cfg ConsumerConfig
	// stop is closed by Close to unblock Consume.
	stop chan struct{}
	// isClosed indicates whether the consumer has been closed.
	isClosed atomic.Bool
	log      *zap.Logger
}

// NewConsumer registers a subscription on the queue named in cfg. The consumer
// tag is left to the broker and deliveries must be acknowledged explicitly.
func NewConsumer(s *Session, cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil || cfg.QueueName == "" {
		return nil, ConsumerConfEmptyError{}
	}

	if cfg.Prefetch > 0 {
		if err := s.SetQos(cfg.Prefetch); err != nil {
			return nil, err
		}
	}

	consumer := &Consumer{
		session: s,
		cfg:     *cfg,
		stop:    make(chan struct{}),
		log:     s.Logger(),
	}

	err := s.withChannel(func(ch Channel) error {
		consumer.cancels = ch.NotifyCancel(make(chan string, 1))

		msgCh, err := ch.Consume(setConsumerConfig(*cfg))
		if err != nil {
			return &ChannelError{Err: fmt.Errorf("consume queue %q: %w", cfg.QueueName, err)}
		}

		consumer.deliveries = msgCh

		return nil
	})
	if err != nil {
		return nil, err
	}

	consumer.log.Info("subscribed to queue", zap.String("queue", cfg.QueueName))

	return consumer, nil
}

// setConsumerConfig maps our ConsumerConfig to the parameters expected by amqp091.Channel.Consume.
//
//nolint:gocritic // returning multiple values is justified in this context
func setConsumerConfig(cfg ConsumerConfig) (queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) {
	return cfg.QueueName, "", false, cfg.Exclusive, false, false, cfg.Args
}

// Consume returns the next delivery in arrival order.
// It returns ConsumerCancelledError once the broker revoked the subscription or
// the stream ended, ConsumerClosedError after Close, *DeliveryError for a single
// unusable delivery (the stream stays valid) and ctx.Err() when ctx is done.
func (c *Consumer) Consume(ctx context.Context) (broker.Message, error) {
	if c.isClosed.Load() {
		return nil, ConsumerClosedError{}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stop:
		return nil, ConsumerClosedError{}
	case tag, ok := <-c.cancels:
		if c.isClosed.Load() {
			return nil, ConsumerClosedError{}
		}

		if !ok {
			c.cancels = nil
		}

		return nil, ConsumerCancelledError{Tag: tag}
	case d, ok := <-c.deliveries:
		if !ok {
			if c.isClosed.Load() {
				return nil, ConsumerClosedError{}
			}

			return nil, ConsumerCancelledError{}
		}

		if d.DeliveryTag == 0 {
			return nil, &DeliveryError{Reason: "delivery without tag on queue " + c.cfg.QueueName}
		}

		return &Message{
			deliver: d,
			session: c.session,
		}, nil
	}
}

// Close stops message consumption and closes the session, which ends the
// broker subscription. It is safe to call more than once.
func (c *Consumer) Close() error {
	if !c.isClosed.CompareAndSwap(false, true) {
		return nil
	}

	close(c.stop)

	if err := c.session.Close(); err != nil && !errors.Is(err, SessionNotOpenError{}) {
		return fmt.Errorf("close consumer session: %w", err)
	}

	return nil
}
