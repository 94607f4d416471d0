// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package consumer implements batched, at-least-once consumption with a
// bounded retry ladder and dead lettering.
//
// Each worker owns one broker channel. Deliveries are decoded and grouped
// into batches by count or by time; a batch is acknowledged with one
// cumulative ack of its last delivery tag only after its outcome, success,
// retry or dead letter, has been handed to the broker.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/absmach/courier/broker"
	"github.com/absmach/courier/codec"
	"github.com/absmach/courier/retry"
	"github.com/absmach/courier/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/absmach/courier/consumer"

type options struct {
	handler      any
	batchHandler any
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	tracer       trace.Tracer
}

// Option configures a Consumer.
type Option func(*options)

// WithHandler sets the handler used when the batch size is 1.
func WithHandler[T any](h Handler[T]) Option {
	return func(o *options) {
		o.handler = h
	}
}

// WithBatchHandler sets the handler used when the batch size is greater
// than 1.
func WithBatchHandler[T any](h BatchHandler[T]) Option {
	return func(o *options) {
		o.batchHandler = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer used for batch handling spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// Consumer consumes a queue with a pool of workers.
type Consumer[T any] struct {
	cfg      Config
	ladder   retry.Ladder
	channels broker.ChannelSource
	codec    codec.Codec[T]
	handle   handleFunc[T]

	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	stats   *Stats

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

// New creates a consumer. The handler form must match the batch size:
// WithHandler for 1, WithBatchHandler otherwise. A nil codec means JSON.
func New[T any](cfg Config, channels broker.ChannelSource, c codec.Codec[T], opts ...Option) (*Consumer[T], error) {
	if channels == nil {
		return nil, ErrNilChannelSource
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		c = codec.JSON[T]{}
	}

	o := options{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	handle, err := resolveHandler[T](cfg.BatchSize, o.handler, o.batchHandler)
	if err != nil {
		return nil, err
	}

	return &Consumer[T]{
		cfg:      cfg,
		ladder:   cfg.Ladder(),
		channels: channels,
		codec:    c,
		handle:   handle,
		logger:   o.logger,
		metrics:  o.metrics,
		tracer:   o.tracer,
		stats:    NewStats(),
	}, nil
}

// Config returns the normalized configuration.
func (c *Consumer[T]) Config() Config {
	return c.cfg
}

// Stats returns a snapshot of the consumer statistics.
func (c *Consumer[T]) Stats() Stats {
	return c.stats.Snapshot()
}

// StartConsuming opens one channel per worker, subscribes every worker and
// starts them in the background. Workers run until ctx is done, Stop is
// called or one of them fails.
func (c *Consumer[T]) StartConsuming(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}

	type subscription struct {
		w          *worker[T]
		deliveries <-chan broker.Delivery
	}
	subs := make([]subscription, 0, c.cfg.Workers)
	abort := func(err error) error {
		for _, s := range subs {
			s.w.ch.Close()
		}
		return err
	}

	for i := 0; i < c.cfg.Workers; i++ {
		ch, err := c.channels.Channel(ctx)
		if err != nil {
			return abort(err)
		}
		w, err := newWorker(c, i, ch)
		if err != nil {
			ch.Close()
			return abort(err)
		}
		deliveries, err := w.subscribe(ctx)
		if err != nil {
			ch.Close()
			return abort(err)
		}
		subs = append(subs, subscription{w: w, deliveries: deliveries})
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range subs {
		g.Go(func() error {
			return s.w.run(gctx, s.deliveries)
		})
	}

	c.cancel = cancel
	c.group = g
	c.started = true

	c.logger.Info("consumer started",
		slog.String("name", c.cfg.Name),
		slog.String("queue", c.cfg.Queue),
		slog.Int("workers", c.cfg.Workers),
		slog.Int("batch_size", c.cfg.BatchSize),
		slog.Any("retry_intervals", []uint64(c.ladder)))
	return nil
}

// Wait blocks until every worker has stopped and returns the first worker
// error.
func (c *Consumer[T]) Wait() error {
	c.mu.Lock()
	g := c.group
	c.mu.Unlock()
	if g == nil {
		return ErrNotStarted
	}
	return g.Wait()
}

// Stop cancels the workers and waits for them. Batches that were not
// handled stay unacknowledged and are redelivered by the broker.
func (c *Consumer[T]) Stop() error {
	c.mu.Lock()
	cancel, g := c.cancel, c.group
	c.mu.Unlock()
	if g == nil {
		return ErrNotStarted
	}

	cancel()
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	c.logger.Info("consumer stopped", slog.String("name", c.cfg.Name))
	return err
}
