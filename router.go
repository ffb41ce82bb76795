// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"context"
	"fmt"

	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
)

// Router dispatches deliveries by routing key. The empty key is the fallback
// for keys without a handler of their own.
type Router map[string]broker.Handler

func NewRouter() Router {
	return make(Router)
}

func (r Router) Add(key string, h broker.Handler) {
	r[key] = h
}

// Fallback sets the handler for routing keys nothing else matched.
func (r Router) Fallback(h broker.Handler) {
	r[""] = h
}

// Handle implements broker.Handler.
func (r Router) Handle(ctx context.Context, msg broker.Message) error {
	h, ok := r[msg.RoutingKey()]
	if !ok {
		if h, ok = r[""]; !ok {
			return fmt.Errorf("%w, routing key: %s", UnroutedMessage{}, msg.RoutingKey())
		}
	}

	return h.Handle(ctx, msg)
}
