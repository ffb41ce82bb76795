// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"context"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
	"github.com/GwynCerbin/rabbit_tools/pkg/headers"
	"go.uber.org/zap"
)

// Printer writes every delivery as
//
//	Received <routing key> :: <headers>
//	<payload>
//
// Payloads must be UTF-8 text.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
	log *zap.Logger
}

// NewPrinter returns a Printer writing to out. A nil log disables logging.
func NewPrinter(out io.Writer, log *zap.Logger) *Printer {
	if log == nil {
		log = zap.NewNop()
	}

	return &Printer{out: out, log: log}
}

// Handle implements broker.Handler.
func (p *Printer) Handle(_ context.Context, msg broker.Message) error {
	body := msg.Body()

	if !utf8.Valid(body) {
		return &DecodeError{DeliveryTag: msg.DeliveryTag(), Offset: invalidOffset(body)}
	}

	rendered := headers.Render(msg.Headers())

	p.log.Debug("delivery received",
		zap.String("routing_key", msg.RoutingKey()),
		zap.String("headers", rendered),
		zap.String("message_id", msg.MessageID()),
		zap.Bool("redelivered", msg.IsRedelivered()))

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintf(p.out, "Received %s :: %s\n%s\n", msg.RoutingKey(), rendered, body); err != nil {
		return fmt.Errorf("write delivery: %w", err)
	}

	return nil
}

// invalidOffset returns the index of the first byte that breaks UTF-8 decoding.
func invalidOffset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}

		i += size
	}

	return len(b)
}
