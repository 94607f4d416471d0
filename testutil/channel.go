// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides an in-memory broker channel for tests.
package testutil

import (
	"context"
	"sync"

	"github.com/absmach/courier/broker"
)

var (
	_ broker.Channel  = (*Channel)(nil)
	_ broker.Topology = (*Channel)(nil)
)

// Published is a recorded publish call.
type Published struct {
	Exchange   string
	RoutingKey string
	Msg        broker.Publishing
}

// Ack is a recorded ack or nack call.
type Ack struct {
	Tag      uint64
	Multiple bool
	Requeue  bool
}

// Exchange is a recorded exchange declaration.
type Exchange struct {
	Name string
	Kind string
	Args map[string]any
}

// Binding is a recorded queue binding.
type Binding struct {
	Queue      string
	RoutingKey string
	Exchange   string
}

// Channel is an in-memory broker.Channel and broker.Topology that records
// every call. Failures are injected through the exported hooks.
type Channel struct {
	// PublishErr, when set, decides the outcome of every publish.
	PublishErr func(exchange, routingKey string) error
	// AckErr is returned by Ack when set.
	AckErr error
	// DeclareErr is returned by every topology call when set.
	DeclareErr error

	mu         sync.Mutex
	published  []Published
	acks       []Ack
	nacks      []Ack
	rejects    []Ack
	prefetch   int
	exchanges  []Exchange
	queues     map[string]map[string]any
	bindings   []Binding
	nextTag    uint64
	closed     bool
	cancelled  bool
	consumed   string
	deliveries chan broker.Delivery
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{
		queues:     make(map[string]map[string]any),
		deliveries: make(chan broker.Delivery, 1024),
	}
}

// Deliver pushes a delivery with the next tag to the consumer and returns the tag.
func (c *Channel) Deliver(body []byte, headers broker.Headers) uint64 {
	c.mu.Lock()
	c.nextTag++
	tag := c.nextTag
	c.mu.Unlock()

	c.deliveries <- broker.Delivery{
		Body:    body,
		Tag:     tag,
		Headers: headers,
	}
	return tag
}

// Publish implements broker.Channel.
func (c *Channel) Publish(ctx context.Context, exchange, routingKey string, msg broker.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return broker.ErrChannelClosed
	}
	if c.PublishErr != nil {
		if err := c.PublishErr(exchange, routingKey); err != nil {
			return err
		}
	}
	c.published = append(c.published, Published{
		Exchange:   exchange,
		RoutingKey: routingKey,
		Msg:        msg,
	})
	return nil
}

// Consume implements broker.Channel.
func (c *Channel) Consume(ctx context.Context, queue, consumerTag string) (<-chan broker.Delivery, error) {
	if queue == "" {
		return nil, broker.ErrInvalidQueue
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, broker.ErrChannelClosed
	}
	c.consumed = queue
	return c.deliveries, nil
}

// Ack implements broker.Channel.
func (c *Channel) Ack(tag uint64, multiple bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AckErr != nil {
		return c.AckErr
	}
	c.acks = append(c.acks, Ack{Tag: tag, Multiple: multiple})
	return nil
}

// Nack implements broker.Channel.
func (c *Channel) Nack(tag uint64, multiple, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nacks = append(c.nacks, Ack{Tag: tag, Multiple: multiple, Requeue: requeue})
	return nil
}

// Reject implements broker.Channel.
func (c *Channel) Reject(tag uint64, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejects = append(c.rejects, Ack{Tag: tag, Requeue: requeue})
	return nil
}

// Qos implements broker.Channel.
func (c *Channel) Qos(prefetch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetch
	return nil
}

// Cancel implements broker.Channel. It closes the delivery stream.
func (c *Channel) Cancel(consumerTag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cancelled {
		c.cancelled = true
		close(c.deliveries)
	}
	return nil
}

// Close implements broker.Channel.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// DeclareExchange implements broker.Topology.
func (c *Channel) DeclareExchange(name, kind string, args map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DeclareErr != nil {
		return c.DeclareErr
	}
	c.exchanges = append(c.exchanges, Exchange{Name: name, Kind: kind, Args: args})
	return nil
}

// DeclareQueue implements broker.Topology.
func (c *Channel) DeclareQueue(name string, args map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DeclareErr != nil {
		return c.DeclareErr
	}
	c.queues[name] = args
	return nil
}

// BindQueue implements broker.Topology.
func (c *Channel) BindQueue(queue, routingKey, exchange string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DeclareErr != nil {
		return c.DeclareErr
	}
	c.bindings = append(c.bindings, Binding{Queue: queue, RoutingKey: routingKey, Exchange: exchange})
	return nil
}

// Published returns a copy of the recorded publishes.
func (c *Channel) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// PublishedTo returns the publishes sent to exchange with routingKey.
func (c *Channel) PublishedTo(exchange, routingKey string) []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Published
	for _, p := range c.published {
		if p.Exchange == exchange && p.RoutingKey == routingKey {
			out = append(out, p)
		}
	}
	return out
}

// Acks returns a copy of the recorded acks.
func (c *Channel) Acks() []Ack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Ack(nil), c.acks...)
}

// Nacks returns a copy of the recorded nacks.
func (c *Channel) Nacks() []Ack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Ack(nil), c.nacks...)
}

// Rejects returns a copy of the recorded rejects.
func (c *Channel) Rejects() []Ack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Ack(nil), c.rejects...)
}

// Prefetch returns the last Qos prefetch.
func (c *Channel) Prefetch() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefetch
}

// ConsumedQueue returns the queue passed to Consume.
func (c *Channel) ConsumedQueue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumed
}

// Closed reports whether Close was called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Exchanges returns the declared exchanges.
func (c *Channel) Exchanges() []Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Exchange(nil), c.exchanges...)
}

// Queues returns the declared queues and their arguments.
func (c *Channel) Queues() map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[string]any, len(c.queues))
	for k, v := range c.queues {
		out[k] = v
	}
	return out
}

// Bindings returns the declared bindings.
func (c *Channel) Bindings() []Binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Binding(nil), c.bindings...)
}

// Source hands out the given channels in order, one per Channel call.
type Source struct {
	mu       sync.Mutex
	channels []*Channel
	next     int
	Err      error
}

var _ broker.ChannelSource = (*Source)(nil)

// NewSource creates a source over channels.
func NewSource(channels ...*Channel) *Source {
	return &Source{channels: channels}
}

// Channel implements broker.ChannelSource.
func (s *Source) Channel(ctx context.Context) (broker.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if s.next >= len(s.channels) {
		return nil, broker.ErrNotConnected
	}
	ch := s.channels[s.next]
	s.next++
	return ch, nil
}
