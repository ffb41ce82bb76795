// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package broker

// OutgoingMessage is a single message handed to a Publisher.
type OutgoingMessage struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	// Headers is attached as the headers property when non-nil. A nil map
	// omits the property entirely, an empty map attaches an empty table.
	Headers   map[string]interface{}
	Mandatory bool
}

// Status is the resolution of a publisher confirmation.
type Status uint8

const (
	// StatusUnknown marks a confirmation that could not be classified.
	StatusUnknown Status = iota
	// StatusAccepted marks a message the broker acknowledged without returning it.
	StatusAccepted
	// StatusRejected marks a message the broker nacked or returned as unroutable.
	StatusRejected
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the result of exactly one publish.
type Outcome struct {
	Status Status
	// Reason describes a rejection or an ambiguous confirmation.
	Reason string
	// ReplyCode is the broker reply code of a returned message, zero otherwise.
	ReplyCode uint16
	// DeliveryTag is the publish sequence number the outcome was correlated with.
	DeliveryTag uint64
}

// Accepted reports whether the broker took responsibility for the message.
func (o Outcome) Accepted() bool {
	return o.Status == StatusAccepted
}

// Failed reports whether the outcome must be treated as a failure.
// Ambiguous confirmations count as failures.
func (o Outcome) Failed() bool {
	return o.Status != StatusAccepted
}

// Unroutable reports whether the message was returned because no queue was bound.
func (o Outcome) Unroutable() bool {
	return o.Status == StatusRejected && o.ReplyCode != 0
}
