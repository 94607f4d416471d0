// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package consumer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/absmach/courier/retry"
)

// Default values.
const (
	DefaultDischargeInterval = 60 * time.Second
	DefaultRetrySuffix       = "-retry"
	DefaultDeadSuffix        = "-dead"

	// MaxPrefetch is the largest prefetch count AMQP can carry.
	MaxPrefetch = math.MaxUint16
)

// AckPolicy decides how a failed batch is acknowledged when re-publishing
// some of its messages fails.
type AckPolicy string

const (
	// AckAlways acknowledges the batch once retries and dead letters have
	// been attempted, whatever their outcome.
	AckAlways AckPolicy = "always"
	// AckConfirmed acknowledges the batch only when every re-publish
	// succeeded, and requeues it otherwise.
	AckConfirmed AckPolicy = "confirmed"
)

// Config configures a consumer.
type Config struct {
	Name  string `yaml:"name"`
	Queue string `yaml:"queue"` // defaults to Name

	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
	Prefetch  int `yaml:"prefetch"` // defaults to BatchSize

	// RetryIntervals are the retry delays in milliseconds. Values below
	// retry.MinInterval are ignored.
	RetryIntervals []uint64 `yaml:"retry_intervals"`

	// DischargeInterval flushes a partial batch that has not filled up.
	DischargeInterval time.Duration `yaml:"discharge_interval"`

	DelayHeader string    `yaml:"delay_header"`
	RetrySuffix string    `yaml:"retry_suffix"`
	DeadSuffix  string    `yaml:"dead_suffix"`
	AckPolicy   AckPolicy `yaml:"ack_policy"`
}

// Normalize returns a copy of c with defaults applied.
func (c Config) Normalize() Config {
	if c.Queue == "" {
		c.Queue = c.Name
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.Prefetch < 1 {
		c.Prefetch = c.BatchSize
	}
	if c.DischargeInterval <= 0 {
		c.DischargeInterval = DefaultDischargeInterval
	}
	if c.DelayHeader == "" {
		c.DelayHeader = retry.DefaultDelayHeader
	}
	if c.RetrySuffix == "" {
		c.RetrySuffix = DefaultRetrySuffix
	}
	if c.DeadSuffix == "" {
		c.DeadSuffix = DefaultDeadSuffix
	}
	if c.AckPolicy == "" {
		c.AckPolicy = AckAlways
	}
	return c
}

// Validate checks the configuration with defaults applied.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	switch c.AckPolicy {
	case "", AckAlways, AckConfirmed:
	default:
		return fmt.Errorf("%w: '%s'", ErrInvalidAckPolicy, c.AckPolicy)
	}

	c = c.Normalize()
	if c.BatchSize > MaxPrefetch || c.Prefetch > MaxPrefetch {
		return fmt.Errorf("consumer %s: batch_size and prefetch cannot exceed %d", c.Name, MaxPrefetch)
	}
	if c.BatchSize > c.Prefetch {
		return fmt.Errorf("consumer %s: prefetch %d is smaller than batch_size %d", c.Name, c.Prefetch, c.BatchSize)
	}
	return nil
}

// Ladder returns the retry ladder built from RetryIntervals.
func (c Config) Ladder() retry.Ladder {
	return retry.NewLadder(c.RetryIntervals)
}

// RetryExchange returns the name of the delayed exchange feeding the queue.
// It is meant for normalized configs.
func (c Config) RetryExchange() string {
	return c.Name + c.RetrySuffix
}

// DeadQueue returns the name of the dead letter queue. It is meant for
// normalized configs.
func (c Config) DeadQueue() string {
	return c.Name + c.DeadSuffix
}
