// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package amqp091 implements the broker channel contract on top of
// github.com/rabbitmq/amqp091-go.
package amqp091

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/absmach/courier/broker"
	amqp091 "github.com/rabbitmq/amqp091-go"
)

var _ broker.ChannelSource = (*Connection)(nil)

// Connection is a broker connection that hands out one channel per caller.
type Connection struct {
	opts   *Options
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp091.Connection

	connected atomic.Bool
}

// New creates a new connection with the given options. It does not dial.
func New(opts *Options, logger *slog.Logger) (*Connection, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Connection{
		opts:   opts,
		logger: logger,
	}, nil
}

// Dial creates a connection and connects it.
func Dial(opts *Options, logger *slog.Logger) (*Connection, error) {
	c, err := New(opts, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect establishes the connection, trying every host in order.
func (c *Connection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return ErrAlreadyConnected
	}

	dialer := &net.Dialer{Timeout: c.opts.DialTimeout}
	cfg := amqp091.Config{
		TLSClientConfig: c.opts.TLSConfig,
		Heartbeat:       c.opts.Heartbeat,
		Dial:            dialer.Dial,
	}

	var errs []error
	for _, url := range c.opts.dialURLs() {
		conn, err := amqp091.DialConfig(url, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.conn = conn
		c.connected.Store(true)
		go c.watch(conn)
		return nil
	}

	return fmt.Errorf("failed to connect to broker: %w", errors.Join(errs...))
}

func (c *Connection) watch(conn *amqp091.Connection) {
	closed := conn.NotifyClose(make(chan *amqp091.Error, 1))
	if err, ok := <-closed; ok && err != nil {
		c.logger.Error("broker connection closed",
			slog.Int("code", err.Code),
			slog.String("reason", err.Reason))
	}
	c.mu.Lock()
	if c.conn == conn {
		c.connected.Store(false)
	}
	c.mu.Unlock()
}

// Channel opens a fresh channel on the connection.
func (c *Connection) Channel(ctx context.Context) (broker.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if !c.connected.Load() || conn == nil {
		return nil, broker.ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	wrapped, err := NewChannel(ch)
	if err != nil {
		return nil, err
	}
	return wrapped, nil
}

// Topology opens a channel for declaring topology.
func (c *Connection) Topology(ctx context.Context) (*Channel, error) {
	ch, err := c.Channel(ctx)
	if err != nil {
		return nil, err
	}
	return ch.(*Channel), nil
}

// IsConnected reports whether the connection is open.
func (c *Connection) IsConnected() bool {
	return c.connected.Load()
}

// Close closes the connection and every channel opened on it.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.connected.Store(false)
	if errors.Is(err, amqp091.ErrClosed) {
		return nil
	}
	return err
}
