// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinterHandle(t *testing.T) {
	tests := []struct {
		name string
		msg  *fakeMessage
		want string
	}{
		{
			name: "headers sorted",
			msg:  &fakeMessage{key: "rk", headers: map[string]interface{}{"b": "2", "a": "1"}, body: []byte("Hello person #01!")},
			want: "Received rk :: a=1, b=2\nHello person #01!\n",
		},
		{
			name: "no headers",
			msg:  &fakeMessage{key: "rk", body: []byte("Hello person #02!")},
			want: "Received rk :: \nHello person #02!\n",
		},
		{
			name: "empty routing key",
			msg:  &fakeMessage{body: []byte("x")},
			want: "Received  :: \nx\n",
		},
		{
			name: "non string header",
			msg:  &fakeMessage{key: "rk", headers: map[string]interface{}{"n": int32(5)}, body: []byte("x")},
			want: "Received rk :: n=\nx\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer

			require.NoError(t, NewPrinter(&out, nil).Handle(context.Background(), tt.msg))
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestPrinterInvalidUTF8(t *testing.T) {
	var out bytes.Buffer

	err := NewPrinter(&out, nil).Handle(context.Background(), &fakeMessage{tag: 3, body: []byte{'o', 'k', 0xff, 'x'}})

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, uint64(3), decErr.DeliveryTag)
	assert.Equal(t, 2, decErr.Offset)
	assert.Empty(t, out.String())
}
