// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package topology declares the queues, exchanges and bindings consumers and
// publishers rely on. Declarations are durable and idempotent.
package topology

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/absmach/courier/broker"
	"github.com/absmach/courier/consumer"
	"github.com/absmach/courier/publisher"
)

// ErrNilTopology is returned when there is nothing to declare on.
var ErrNilTopology = errors.New("topology: declarer cannot be nil")

// Declarer declares broker topology.
type Declarer struct {
	t      broker.Topology
	logger *slog.Logger
}

// New creates a declarer.
func New(t broker.Topology, logger *slog.Logger) (*Declarer, error) {
	if t == nil {
		return nil, ErrNilTopology
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Declarer{t: t, logger: logger}, nil
}

// Declare declares every consumer and publisher.
func (d *Declarer) Declare(consumers []consumer.Config, publishers []publisher.Config) error {
	for _, cfg := range consumers {
		if err := d.DeclareConsumer(cfg); err != nil {
			return err
		}
	}
	for _, cfg := range publishers {
		if err := d.DeclarePublisher(cfg); err != nil {
			return err
		}
	}
	return nil
}

// DeclareConsumer declares the consumed queue, its delayed retry exchange
// bound back to it, and its dead letter queue.
func (d *Declarer) DeclareConsumer(cfg consumer.Config) error {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := d.t.DeclareQueue(cfg.Queue, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}
	if err := d.DeclarePublisher(publisher.RetryConfig(cfg.RetryExchange(), cfg.Queue)); err != nil {
		return err
	}
	if err := d.DeclarePublisher(publisher.DeadConfig(cfg.DeadQueue())); err != nil {
		return err
	}

	d.logger.Info("declared consumer topology",
		slog.String("queue", cfg.Queue),
		slog.String("retry_exchange", cfg.RetryExchange()),
		slog.String("dead_queue", cfg.DeadQueue()))
	return nil
}

// DeclarePublisher declares the destination of a publisher. Exchange
// destinations get their queues declared and bound with every routing key.
func (d *Declarer) DeclarePublisher(cfg publisher.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if !cfg.IsExchange() {
		if err := d.t.DeclareQueue(cfg.Name, cfg.Arguments); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", cfg.Name, err)
		}
		return nil
	}

	if err := d.t.DeclareExchange(cfg.Name, cfg.Kind, cfg.Arguments); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.Name, err)
	}
	for _, b := range cfg.Bindings() {
		if err := d.t.DeclareQueue(b.Name, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.Name, err)
		}
		for _, key := range b.RoutingKeys {
			if err := d.t.BindQueue(b.Name, key, cfg.Name); err != nil {
				return fmt.Errorf("failed to bind queue %s to %s with %s: %w", b.Name, cfg.Name, key, err)
			}
		}
	}

	d.logger.Debug("declared publisher topology",
		slog.String("exchange", cfg.Name),
		slog.String("kind", cfg.Kind))
	return nil
}
