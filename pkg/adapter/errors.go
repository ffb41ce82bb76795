// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import "fmt"

// ConnectionError is returned when the broker cannot be reached or refuses the handshake.
type ConnectionError struct {
	URL string
	Err error
}

// ChannelError is returned when a channel cannot be opened on an established connection.
type ChannelError struct {
	Err error
}

// PublishError is returned when a message cannot be written or its confirmation
// stream disappeared before the broker answered.
type PublishError struct {
	Exchange   string
	RoutingKey string
	Err        error
}

// AckError is returned when acknowledging or rejecting a delivery fails.
type AckError struct {
	DeliveryTag uint64
	Err         error
}

// DeliveryError marks a single malformed delivery. The stream stays usable.
type DeliveryError struct {
	Reason string
}

// ConConfEmptyError indicates that a nil client configuration was passed to Dial.
type ConConfEmptyError struct{}

// SessionNotOpenError is returned when a Session that was never dialed is used.
type SessionNotOpenError struct{}

// SessionClosedError is returned when operations are attempted on a closed session.
type SessionClosedError struct{}

// ConfirmModeError is returned when confirm mode is enabled twice or after a publish.
type ConfirmModeError struct{}

// PublisherConfEmptyError indicates that a nil or empty publisher configuration
// was provided when creating a new publisher.
type PublisherConfEmptyError struct{}

// ConsumerConfEmptyError indicates that a nil or empty consumer configuration
// was provided when creating a new consumer.
type ConsumerConfEmptyError struct{}

// PublisherClosedError is returned when publishing is attempted on a closed publisher.
type PublisherClosedError struct{}

// ConsumerCancelledError is returned once the broker revoked the subscription
// or the delivery stream ended.
type ConsumerCancelledError struct {
	Tag string
}

// ConsumerClosedError is returned when consuming is attempted after the consumer has been closed.
type ConsumerClosedError struct{}

// Error implements the error interface for ConnectionError.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.URL, e.Err)
}

// Unwrap returns the dial error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Error implements the error interface for ChannelError.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("open channel: %v", e.Err)
}

// Unwrap returns the channel open error.
func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Error implements the error interface for PublishError.
func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to exchange %q with key %q: %v", e.Exchange, e.RoutingKey, e.Err)
}

// Unwrap returns the underlying publish error.
func (e *PublishError) Unwrap() error {
	return e.Err
}

// Error implements the error interface for AckError.
func (e *AckError) Error() string {
	return fmt.Sprintf("acknowledge delivery %d: %v", e.DeliveryTag, e.Err)
}

// Unwrap returns the underlying acknowledgment error.
func (e *AckError) Unwrap() error {
	return e.Err
}

// Error implements the error interface for DeliveryError.
func (e *DeliveryError) Error() string {
	return "malformed delivery: " + e.Reason
}

// Error implements the error interface for ConConfEmptyError.
func (ConConfEmptyError) Error() string {
	return "empty connection config passed, unable to dial"
}

// Error implements the error interface for SessionNotOpenError.
func (SessionNotOpenError) Error() string {
	return "session was never opened"
}

// Error implements the error interface for SessionClosedError.
// It indicates the client explicitly closed the session.
func (SessionClosedError) Error() string {
	return "session closed by client"
}

// Error implements the error interface for ConfirmModeError.
func (ConfirmModeError) Error() string {
	return "confirm mode must be enabled exactly once, before the first publish"
}

// Error implements the error interface for ConsumerConfEmptyError.
// It notifies that consumer configuration was not provided.
func (ConsumerConfEmptyError) Error() string {
	return "empty consumer config passed, unable to create"
}

// Error implements the error interface for PublisherConfEmptyError.
// It notifies that publisher configuration was not provided.
func (PublisherConfEmptyError) Error() string {
	return "empty publisher config passed, unable to create"
}

// Error implements the error interface for PublisherClosedError.
// It signals that the publisher has already been closed.
func (PublisherClosedError) Error() string {
	return "publisher already closed, unable to provide"
}

// Error implements the error interface for ConsumerCancelledError.
func (e ConsumerCancelledError) Error() string {
	if e.Tag == "" {
		return "consumer cancelled, delivery stream ended"
	}

	return "consumer " + e.Tag + " cancelled by broker"
}

// Error implements the error interface for ConsumerClosedError.
// It signals that the consumer has already been closed.
func (ConsumerClosedError) Error() string {
	return "consumer already closed, unable to provide"
}
