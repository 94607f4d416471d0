// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp091

import (
	"context"
	"sync"

	"github.com/absmach/courier/broker"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

var (
	_ broker.Channel  = (*Channel)(nil)
	_ broker.Topology = (*Channel)(nil)
)

// Every exchange and queue is durable, not exclusive and not auto deleted.
const (
	durable    = true
	autoDelete = false
	exclusive  = false
	internal   = false
	noWait     = false
)

// Channel wraps a single AMQP channel. Calls are serialized since an
// amqp091 channel must not be used concurrently for publishing and acking.
type Channel struct {
	mu sync.Mutex
	ch *amqp091.Channel
}

// NewChannel wraps an open amqp091 channel.
func NewChannel(ch *amqp091.Channel) (*Channel, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	return &Channel{ch: ch}, nil
}

// Publish implements broker.Channel.
func (c *Channel) Publish(ctx context.Context, exchange, routingKey string, msg broker.Publishing) error {
	publishing := amqp091.Publishing{
		Headers:     amqp091.Table(msg.Headers),
		ContentType: msg.ContentType,
		MessageId:   msg.MessageID,
		Timestamp:   msg.Timestamp,
		Body:        msg.Body,
	}
	if msg.Persistent {
		publishing.DeliveryMode = amqp091.Persistent
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.PublishWithContext(ctx, exchange, routingKey, false, false, publishing)
}

// Consume implements broker.Channel. Deliveries are never auto acknowledged.
func (c *Channel) Consume(ctx context.Context, queue, consumerTag string) (<-chan broker.Delivery, error) {
	if queue == "" {
		return nil, broker.ErrInvalidQueue
	}

	c.mu.Lock()
	deliveries, err := c.ch.Consume(
		queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(chan broker.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- toDelivery(d):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Ack implements broker.Channel.
func (c *Channel) Ack(tag uint64, multiple bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.Ack(tag, multiple)
}

// Nack implements broker.Channel.
func (c *Channel) Nack(tag uint64, multiple, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.Nack(tag, multiple, requeue)
}

// Reject implements broker.Channel.
func (c *Channel) Reject(tag uint64, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.Reject(tag, requeue)
}

// Qos implements broker.Channel.
func (c *Channel) Qos(prefetch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.Qos(prefetch, 0, false)
}

// Cancel implements broker.Channel.
func (c *Channel) Cancel(consumerTag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.Cancel(consumerTag, false)
}

// Close implements broker.Channel.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch.IsClosed() {
		return nil
	}
	return c.ch.Close()
}

// DeclareExchange implements broker.Topology.
func (c *Channel) DeclareExchange(name, kind string, args map[string]any) error {
	if name == "" {
		return broker.ErrInvalidExchange
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, amqp091.Table(args))
}

// DeclareQueue implements broker.Topology.
func (c *Channel) DeclareQueue(name string, args map[string]any) error {
	if name == "" {
		return broker.ErrInvalidQueue
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, amqp091.Table(args))
	return err
}

// BindQueue implements broker.Topology.
func (c *Channel) BindQueue(queue, routingKey, exchange string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch.QueueBind(queue, routingKey, exchange, noWait, nil)
}

func toDelivery(d amqp091.Delivery) broker.Delivery {
	return broker.Delivery{
		Body:        d.Body,
		Tag:         d.DeliveryTag,
		Headers:     broker.Headers(d.Headers),
		Exchange:    d.Exchange,
		RoutingKey:  d.RoutingKey,
		ContentType: d.ContentType,
		MessageID:   d.MessageId,
		Redelivered: d.Redelivered,
		Timestamp:   d.Timestamp,
	}
}
