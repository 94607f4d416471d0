// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package publisher publishes messages to exchanges and queues, and provides
// the retry and dead letter re-publishers used by consumers.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/absmach/courier/broker"
	"github.com/absmach/courier/codec"
	"github.com/absmach/courier/telemetry"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Emitter publishes raw bodies. *Endpoint implements it.
type Emitter interface {
	Publish(ctx context.Context, route string, headers broker.Headers, body []byte) error
}

var _ Emitter = (*Endpoint)(nil)

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger sets the endpoint logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Endpoint) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Endpoint) {
		e.metrics = m
	}
}

// Endpoint is a channel-bound publishing destination: one exchange or queue
// on one broker channel. It is safe for concurrent use when its channel is.
type Endpoint struct {
	ch  broker.Channel
	cfg Config

	destination  string
	routes       []string
	defaultRoute string

	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewEndpoint creates an endpoint publishing to cfg on ch.
func NewEndpoint(ch broker.Channel, cfg Config, opts ...Option) (*Endpoint, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ContentType == "" {
		cfg.ContentType = codec.ContentTypeJSON
	}

	e := &Endpoint{
		ch:     ch,
		cfg:    cfg,
		routes: cfg.routes(),
		logger: slog.Default(),
	}
	if cfg.IsExchange() {
		e.destination = cfg.Name
	}
	if len(e.routes) == 1 {
		e.defaultRoute = e.routes[0]
	}

	for _, opt := range opts {
		opt(e)
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.CircuitBreaker.Enabled {
		threshold := uint32(cfg.CircuitBreaker.FailureThreshold)
		logger := e.logger
		e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Interval:    0,
			Timeout:     cfg.CircuitBreaker.ResetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("publisher circuit breaker state changed",
					slog.String("publisher", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		})
	}

	e.logger.Debug("starting publisher",
		slog.String("publisher", cfg.Name),
		slog.String("kind", cfg.Kind),
		slog.Any("routes", e.routes))

	return e, nil
}

// Name returns the configured destination name.
func (e *Endpoint) Name() string {
	return e.cfg.Name
}

// DefaultRoute returns the routing key used when none is given.
func (e *Endpoint) DefaultRoute() string {
	return e.defaultRoute
}

// Routes returns the accepted routing keys.
func (e *Endpoint) Routes() []string {
	return slices.Clone(e.routes)
}

// Config returns the endpoint configuration.
func (e *Endpoint) Config() Config {
	return e.cfg
}

// ValidateRoute reports whether route may be published to.
func (e *Endpoint) ValidateRoute(route string) bool {
	return !e.cfg.IsExchange() || e.cfg.IsFanout() || slices.Contains(e.routes, route)
}

// Publish sends body with the merged headers. An empty route means the
// default route; queue destinations always use the queue name.
func (e *Endpoint) Publish(ctx context.Context, route string, headers broker.Headers, body []byte) error {
	if route == "" || !e.cfg.IsExchange() {
		route = e.defaultRoute
	}
	if !e.ValidateRoute(route) {
		return fmt.Errorf("%w: '%s' is not a valid routing key for %s", ErrInvalidRoute, route, e.cfg.Name)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	msg := broker.Publishing{
		Headers:     e.mergeHeaders(headers),
		Body:        body,
		ContentType: e.cfg.ContentType,
		MessageID:   uuid.NewString(),
		Persistent:  !e.cfg.Transient,
		Timestamp:   time.Now(),
	}

	start := time.Now()
	err := e.execute(func() error {
		return e.ch.Publish(ctx, e.destination, route, msg)
	})
	e.metrics.RecordPublish(e.cfg.Name, time.Since(start), err)
	return err
}

func (e *Endpoint) execute(fn func() error) error {
	if e.breaker == nil {
		return fn()
	}
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, e.cfg.Name)
	}
	return err
}

// mergeHeaders merges configured headers with per-publish ones; the latter win.
func (e *Endpoint) mergeHeaders(headers broker.Headers) broker.Headers {
	if len(e.cfg.Headers) == 0 && len(headers) == 0 {
		return nil
	}
	merged := make(broker.Headers, len(e.cfg.Headers)+len(headers))
	for k, v := range e.cfg.Headers {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	return merged
}
