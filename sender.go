// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
	"github.com/GwynCerbin/rabbit_tools/pkg/metrics"
	"go.uber.org/zap"
)

const payloadFormat = "Hello person #%02d!"

// Payload returns the body of the n-th message.
func Payload(n int) []byte {
	return []byte(fmt.Sprintf(payloadFormat, n))
}

// Sender publishes one message per operator confirmation.
type Sender struct {
	publisher  broker.Publisher
	loop       broker.OperatorLoop
	exchange   string
	routingKey string
	headers    map[string]interface{}
	log        *zap.Logger
	metrics    *metrics.Metrics
	sent       int
	failed     int
}

// SenderConfig describes where the messages go.
type SenderConfig struct {
	Exchange   string
	RoutingKey string
	// Headers is attached to every message; nil sends none.
	Headers map[string]interface{}
}

// NewSender returns a Sender driven by loop.
func NewSender(publisher broker.Publisher, loop broker.OperatorLoop, cfg SenderConfig) *Sender {
	return &Sender{
		publisher:  publisher,
		loop:       loop,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		headers:    cfg.Headers,
		log:        zap.NewNop(),
	}
}

// SetLogger overrides the default no-op logger.
func (s *Sender) SetLogger(log *zap.Logger) {
	if log != nil {
		s.log = log
	}
}

// SetMetrics sets the collectors updated per publish.
func (s *Sender) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Run publishes while the operator loop asks for more. Rejected and ambiguous
// confirmations are reported and the loop goes on; a failed write ends Run
// with the error. A cancelled ctx ends Run with nil.
func (s *Sender) Run(ctx context.Context) error {
	for {
		next, err := s.loop.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return fmt.Errorf("operator loop: %w", err)
		}

		if !next {
			s.log.Info("finishing off and cleaning up", zap.Int("sent", s.sent), zap.Int("failed", s.failed))

			return nil
		}

		s.sent++
		body := Payload(s.sent)

		s.log.Info("sending message", zap.Int("counter", s.sent))
		s.log.Info("> " + string(body))

		start := time.Now()

		out, err := s.publisher.Publish(ctx, broker.OutgoingMessage{
			Exchange:   s.exchange,
			RoutingKey: s.routingKey,
			Body:       body,
			Headers:    s.headers,
			Mandatory:  true,
		})
		if err != nil {
			return err
		}

		s.metrics.ObserveConfirm(time.Since(start))
		s.metrics.IncPublished(out.Status.String())
		s.report(out)
	}
}

func (s *Sender) report(out broker.Outcome) {
	fields := []zap.Field{
		zap.Uint64("delivery_tag", out.DeliveryTag),
		zap.String("exchange", s.exchange),
		zap.String("routing_key", s.routingKey),
	}

	switch out.Status {
	case broker.StatusAccepted:
		s.log.Info("message accepted", fields...)
	case broker.StatusRejected:
		s.failed++
		s.log.Warn("message rejected",
			append(fields, zap.String("reason", out.Reason), zap.Bool("unroutable", out.Unroutable()))...)
	default:
		s.failed++
		s.log.Error("message confirmation ambiguous",
			append(fields, zap.String("reason", out.Reason))...)
	}
}

// Stats returns the number of messages sent and how many of them failed.
func (s *Sender) Stats() (sent, failed int) {
	return s.sent, s.failed
}
