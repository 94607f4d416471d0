// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package broker defines the broker channel contract the delivery pipeline
// is written against. Connection lifecycle and topology belong to the
// implementations.
package broker

import (
	"context"
	"time"
)

// Headers are message headers. Values follow AMQP table semantics.
type Headers map[string]any

// Clone returns a shallow copy of the headers.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Delivery is one raw message handed over by the broker.
type Delivery struct {
	Body        []byte
	Tag         uint64
	Headers     Headers
	Exchange    string
	RoutingKey  string
	ContentType string
	MessageID   string
	Redelivered bool
	Timestamp   time.Time
}

// Publishing is one outbound message.
type Publishing struct {
	Headers     Headers
	Body        []byte
	ContentType string
	MessageID   string
	Persistent  bool
	Timestamp   time.Time
}

// Channel is a single broker channel. Implementations must be safe for
// concurrent use; a channel is still owned by exactly one worker.
type Channel interface {
	// Publish sends msg to exchange with the given routing key. The empty
	// exchange is the default exchange, where the routing key is a queue name.
	Publish(ctx context.Context, exchange, routingKey string, msg Publishing) error

	// Consume starts delivering messages from queue. The returned channel is
	// closed when the consumer is cancelled or the channel closes.
	Consume(ctx context.Context, queue, consumerTag string) (<-chan Delivery, error)

	// Ack acknowledges tag, or every outstanding tag up to it when multiple is set.
	Ack(tag uint64, multiple bool) error

	// Nack negatively acknowledges tag, or every outstanding tag up to it.
	Nack(tag uint64, multiple, requeue bool) error

	// Reject rejects a single delivery.
	Reject(tag uint64, requeue bool) error

	// Qos limits the number of unacknowledged deliveries.
	Qos(prefetch int) error

	// Cancel stops the consumer registered with consumerTag.
	Cancel(consumerTag string) error

	Close() error
}

// Topology declares exchanges, queues and bindings.
type Topology interface {
	DeclareExchange(name, kind string, args map[string]any) error
	DeclareQueue(name string, args map[string]any) error
	BindQueue(queue, routingKey, exchange string) error
}

// ChannelSource opens broker channels.
type ChannelSource interface {
	Channel(ctx context.Context) (Channel, error)
}

// ChannelSourceFunc adapts a function to ChannelSource.
type ChannelSourceFunc func(ctx context.Context) (Channel, error)

// Channel implements ChannelSource.
func (f ChannelSourceFunc) Channel(ctx context.Context) (Channel, error) {
	return f(ctx)
}
