// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"context"
	"testing"

	"github.com/GwynCerbin/rabbit_tools/pkg/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterHandle(t *testing.T) {
	var got []string

	record := func(name string) broker.Handler {
		return broker.HandlerFunc(func(context.Context, broker.Message) error {
			got = append(got, name)

			return nil
		})
	}

	r := NewRouter()
	r.Add("orders", record("orders"))

	require.NoError(t, r.Handle(context.Background(), &fakeMessage{key: "orders"}))

	err := r.Handle(context.Background(), &fakeMessage{key: "users"})
	assert.ErrorIs(t, err, UnroutedMessage{})

	r.Fallback(record("fallback"))
	require.NoError(t, r.Handle(context.Background(), &fakeMessage{key: "users"}))

	assert.Equal(t, []string{"orders", "fallback"}, got)
}
