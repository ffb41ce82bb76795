// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const notAcknowledged = "not acknowledged"

// ConfirmPublisher publishes on a confirm-mode channel and resolves every
// publish to exactly one broker.Outcome before the next one is issued.
type ConfirmPublisher struct {
	// session owns the confirm-mode channel.
	session *Session
	// cfg stores publisher settings like exchange name and routing key.
	cfg PublisherConfig
	// confirms receives broker acks and nacks in publish order.
	confirms chan amqp091.Confirmation
	// returns receives mandatory messages the broker could not route.
	returns chan amqp091.Return
	// seq is the delivery tag of the last publish.
	seq uint64
	// mute keeps a single message in flight.
	mute sync.Mutex
	// isClosed indicates whether the publisher has been closed.
	isClosed atomic.Bool
	log      *zap.Logger
}

// NewConfirmPublisher enables confirm mode on the session channel and registers
// the confirmation and return listeners. It must be the first thing done with
// a fresh session.
func NewConfirmPublisher(s *Session, cfg *PublisherConfig) (*ConfirmPublisher, error) {
	if cfg == nil {
		return nil, PublisherConfEmptyError{}
	}

	if err := s.EnableConfirms(); err != nil {
		return nil, err
	}

	mimetype.SetLimit(mimeReadLimit)

	publisher := &ConfirmPublisher{
		session: s,
		cfg:     *cfg,
		log:     s.Logger(),
	}

	err := s.withChannel(func(ch Channel) error {
		publisher.confirms = ch.NotifyPublish(make(chan amqp091.Confirmation, 1))
		publisher.returns = ch.NotifyReturn(make(chan amqp091.Return, 1))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return publisher, nil
}

// Publish writes msg with the mandatory flag set and waits for the broker
// confirmation correlated to this publish by its sequence number.
// Write failures and a vanished confirmation stream are returned as *PublishError.
// A confirmation that does not arrive before ctx or ConfirmTimeout ends is
// reported as broker.StatusUnknown.
func (p *ConfirmPublisher) Publish(ctx context.Context, msg broker.OutgoingMessage) (broker.Outcome, error) {
	p.mute.Lock()
	defer p.mute.Unlock()

	if p.isClosed.Load() {
		return broker.Outcome{}, PublisherClosedError{}
	}

	publishing := newPublishing(p.cfg, msg)

	p.discardReturns()

	err := p.session.withChannel(func(ch Channel) error {
		p.session.published.Store(true)

		return ch.PublishWithContext(ctx, msg.Exchange, msg.RoutingKey, true, false, publishing)
	})
	if err != nil {
		return broker.Outcome{}, &PublishError{Exchange: msg.Exchange, RoutingKey: msg.RoutingKey, Err: err}
	}

	p.seq++
	tag := p.seq

	p.log.Debug("published, awaiting confirmation",
		zap.Uint64("delivery_tag", tag),
		zap.String("message_id", publishing.MessageId))

	waitCtx := ctx
	if p.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc

		waitCtx, cancel = context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
		defer cancel()
	}

	for {
		select {
		case <-waitCtx.Done():
			return broker.Outcome{
				Status:      broker.StatusUnknown,
				Reason:      fmt.Sprintf("no confirmation received: %v", waitCtx.Err()),
				DeliveryTag: tag,
			}, nil
		case conf, ok := <-p.confirms:
			if !ok {
				return broker.Outcome{}, &PublishError{
					Exchange:   msg.Exchange,
					RoutingKey: msg.RoutingKey,
					Err:        fmt.Errorf("confirmation stream closed: %w", amqp091.ErrClosed),
				}
			}

			if conf.DeliveryTag < tag {
				p.log.Debug("late confirmation ignored", zap.Uint64("delivery_tag", conf.DeliveryTag))

				continue
			}

			return p.classify(conf, tag, publishing.MessageId), nil
		}
	}
}

// classify resolves a confirmation. An ack only counts as accepted when the
// broker did not return the message first.
func (p *ConfirmPublisher) classify(conf amqp091.Confirmation, tag uint64, messageID string) broker.Outcome {
	out := broker.Outcome{DeliveryTag: conf.DeliveryTag}

	switch {
	case conf.DeliveryTag != tag:
		out.Status = broker.StatusUnknown
		out.Reason = fmt.Sprintf("confirmation for delivery tag %d, expected %d", conf.DeliveryTag, tag)
	case !conf.Ack:
		out.Status = broker.StatusRejected
		out.Reason = notAcknowledged
	default:
		if ret, ok := p.takeReturn(messageID); ok {
			out.Status = broker.StatusRejected
			out.ReplyCode = ret.ReplyCode
			out.Reason = fmt.Sprintf("%d %s", ret.ReplyCode, ret.ReplyText)

			break
		}

		out.Status = broker.StatusAccepted
	}

	return out
}

// takeReturn looks for the returned copy of messageID among pending returns.
// The broker sends basic.return before the basic.ack of the same publish.
func (p *ConfirmPublisher) takeReturn(messageID string) (amqp091.Return, bool) {
	for {
		select {
		case ret, ok := <-p.returns:
			if !ok {
				return amqp091.Return{}, false
			}

			if ret.MessageId == messageID {
				return ret, true
			}

			p.log.Warn("return for another message ignored", zap.String("message_id", ret.MessageId))
		default:
			return amqp091.Return{}, false
		}
	}
}

// discardReturns drops returns left over from publishes that were never resolved.
func (p *ConfirmPublisher) discardReturns() {
	for {
		select {
		case ret, ok := <-p.returns:
			if !ok {
				return
			}

			p.log.Warn("stale return dropped",
				zap.String("message_id", ret.MessageId),
				zap.Uint16("reply_code", ret.ReplyCode))
		default:
			return
		}
	}
}

// Close marks the publisher as closed and closes the session.
func (p *ConfirmPublisher) Close() error {
	p.isClosed.Store(true)

	if err := p.session.Close(); err != nil && !errors.Is(err, SessionNotOpenError{}) {
		return fmt.Errorf("close publisher session: %w", err)
	}

	return nil
}
