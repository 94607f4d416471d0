// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/courier/broker"
	"github.com/absmach/courier/codec"
	"github.com/absmach/courier/retry"
)

// Publisher publishes typed messages through an Endpoint.
type Publisher[T any] struct {
	endpoint *Endpoint
	codec    codec.Codec[T]
	logger   *slog.Logger
}

// New creates a typed publisher. A nil codec means JSON.
func New[T any](endpoint *Endpoint, c codec.Codec[T]) *Publisher[T] {
	if c == nil {
		c = codec.JSON[T]{}
	}
	return &Publisher[T]{
		endpoint: endpoint,
		codec:    c,
		logger:   endpoint.logger,
	}
}

// Endpoint returns the underlying endpoint.
func (p *Publisher[T]) Endpoint() *Endpoint {
	return p.endpoint
}

// Publish publishes msg on the default route.
func (p *Publisher[T]) Publish(ctx context.Context, msg T) error {
	return p.PublishTo(ctx, "", msg)
}

// PublishTo publishes msg with the given routing key.
func (p *Publisher[T]) PublishTo(ctx context.Context, route string, msg T) error {
	start := time.Now()
	if err := p.publish(ctx, route, nil, msg); err != nil {
		return err
	}
	p.published(1, start)
	return nil
}

// PublishAll publishes msgs on the default route, stopping at the first error.
func (p *Publisher[T]) PublishAll(ctx context.Context, msgs []T) error {
	return p.PublishAllTo(ctx, "", msgs)
}

// PublishAllTo publishes msgs with the given routing key, stopping at the
// first error.
func (p *Publisher[T]) PublishAllTo(ctx context.Context, route string, msgs []T) error {
	if len(msgs) == 0 {
		return nil
	}
	start := time.Now()
	for _, msg := range msgs {
		if err := p.publish(ctx, route, nil, msg); err != nil {
			return err
		}
	}
	p.published(len(msgs), start)
	return nil
}

// PublishDelayed publishes msg carrying a delay header, for destinations
// backed by a delayed-message exchange.
func (p *Publisher[T]) PublishDelayed(ctx context.Context, msg T, delay time.Duration) error {
	header := p.endpoint.cfg.DelayHeader
	if header == "" {
		header = retry.DefaultDelayHeader
	}
	start := time.Now()
	headers := broker.Headers{header: delay.Milliseconds()}
	if err := p.publish(ctx, "", headers, msg); err != nil {
		return err
	}
	p.published(1, start)
	return nil
}

func (p *Publisher[T]) publish(ctx context.Context, route string, headers broker.Headers, msg T) error {
	body, err := p.codec.Encode(msg)
	if err != nil {
		p.logger.Error("failed to encode message",
			slog.String("publisher", p.endpoint.Name()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if err := p.endpoint.Publish(ctx, route, headers, body); err != nil {
		p.logger.Error("publisher has failed while publishing the message",
			slog.String("publisher", p.endpoint.Name()),
			slog.String("route", route),
			slog.String("error", err.Error()),
			slog.String("message", string(body)))
		return err
	}
	return nil
}

func (p *Publisher[T]) published(count int, start time.Time) {
	p.logger.Debug("publisher has published messages",
		slog.String("publisher", p.endpoint.Name()),
		slog.Int("count", count),
		slog.Float64("milliseconds", float64(time.Since(start))/float64(time.Millisecond)))
}
