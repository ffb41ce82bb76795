// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package rabbit

import "fmt"

type EmptyHandlerError struct {
}

func (EmptyHandlerError) Error() string {
	return "no handler set"
}

type UnroutedMessage struct {
}

func (UnroutedMessage) Error() string {
	return "unrouted message"
}

// DecodeError is returned when a payload is not valid UTF-8 text.
type DecodeError struct {
	DeliveryTag uint64
	Offset      int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("delivery %d: payload is not valid utf-8 at byte %d", e.DeliveryTag, e.Offset)
}

// HandlerError is returned by ListenAndServe in strict mode when the handler fails.
type HandlerError struct {
	DeliveryTag uint64
	RoutingKey  string
	Err         error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handle delivery %d (%s): %v", e.DeliveryTag, e.RoutingKey, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
