// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"context"
	"sync"

	"github.com/GwynCerbin/rabbit_tools/pkg/adapter"
	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
)

type fakeMessage struct {
	mu      sync.Mutex
	tag     uint64
	key     string
	headers map[string]interface{}
	body    []byte
	acks    int
	rejects int
	ackErr  error
}

func (m *fakeMessage) Headers() map[string]interface{} { return m.headers }
func (m *fakeMessage) ContentType() string             { return "text/plain; charset=utf-8" }
func (m *fakeMessage) MessageID() string               { return "id" }
func (m *fakeMessage) IsRedelivered() bool             { return false }
func (m *fakeMessage) Body() []byte                    { return m.body }
func (m *fakeMessage) RoutingKey() string              { return m.key }
func (m *fakeMessage) DeliveryTag() uint64             { return m.tag }

func (m *fakeMessage) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.acks++

	return m.ackErr
}

func (m *fakeMessage) Reject() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rejects++

	return nil
}

func (m *fakeMessage) settled() (acks, rejects int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.acks, m.rejects
}

// fakeConsumer replays a scripted stream. Once the script is exhausted it
// blocks until ctx is done or Close is called.
type fakeConsumer struct {
	events chan consumeEvent
	closed chan struct{}
	once   sync.Once
}

type consumeEvent struct {
	msg broker.Message
	err error
}

func newFakeConsumer(events ...consumeEvent) *fakeConsumer {
	c := &fakeConsumer{
		events: make(chan consumeEvent, len(events)+8),
		closed: make(chan struct{}),
	}

	for _, e := range events {
		c.events <- e
	}

	return c
}

func (c *fakeConsumer) Consume(ctx context.Context) (broker.Message, error) {
	select {
	case e := <-c.events:
		return e.msg, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, adapter.ConsumerClosedError{}
	}
}

func (c *fakeConsumer) Close() error {
	c.once.Do(func() { close(c.closed) })

	return nil
}

func delivery(msg broker.Message) consumeEvent {
	return consumeEvent{msg: msg}
}

type fakePublisher struct {
	mu       sync.Mutex
	outcomes []broker.Outcome
	err      error
	sent     []broker.OutgoingMessage
}

func (p *fakePublisher) Publish(_ context.Context, msg broker.OutgoingMessage) (broker.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return broker.Outcome{}, p.err
	}

	p.sent = append(p.sent, msg)

	out := broker.Outcome{Status: broker.StatusAccepted, DeliveryTag: uint64(len(p.sent))}
	if len(p.outcomes) > 0 {
		out = p.outcomes[0]
		p.outcomes = p.outcomes[1:]
	}

	return out, nil
}

func (p *fakePublisher) Close() error { return nil }

// scriptLoop answers Next from a fixed list, then says stop.
type scriptLoop struct {
	answers []bool
	err     error
}

func (l *scriptLoop) Next(context.Context) (bool, error) {
	if len(l.answers) == 0 {
		return false, l.err
	}

	next := l.answers[0]
	l.answers = l.answers[1:]

	return next, nil
}
