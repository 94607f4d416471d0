// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/absmach/courier/broker"
)

// Exchange kinds. KindQueue publishes straight to a queue through the
// default exchange.
const (
	KindQueue   = ""
	KindDirect  = "direct"
	KindFanout  = "fanout"
	KindTopic   = "topic"
	KindDelayed = "x-delayed-message"
)

// DelayedTypeArgument is the delayed-message exchange argument naming the
// routing behaviour of the underlying exchange.
const DelayedTypeArgument = "x-delayed-type"

// QueueBinding binds a queue to a publisher exchange.
type QueueBinding struct {
	Name        string   `yaml:"name"`
	RoutingKeys []string `yaml:"routing_keys"` // defaults to the queue name
}

// BreakerConfig configures the publish circuit breaker.
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
}

// Config describes a publishing destination.
type Config struct {
	// Name is the exchange name, or the queue name for KindQueue.
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Routes are the routing keys accepted by an exchange publisher. A single
	// route becomes the default route.
	Routes []string `yaml:"routes"`

	// Queues declared and bound to the exchange by the topology setup.
	Queues []QueueBinding `yaml:"queues"`

	// Headers are merged into every publish; per-publish headers win.
	Headers broker.Headers `yaml:"headers"`

	// Arguments of the exchange or queue declaration.
	Arguments map[string]any `yaml:"arguments"`

	ContentType string `yaml:"content_type"`

	// Transient disables persistent delivery mode.
	Transient bool `yaml:"transient"`

	// DelayHeader names the header carrying delays for delayed publishes.
	DelayHeader string `yaml:"delay_header"`

	// RateLimit caps publishes per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	CircuitBreaker BreakerConfig `yaml:"circuit_breaker"`
}

// IsExchange reports whether the destination is an exchange.
func (c Config) IsExchange() bool {
	return c.Kind != KindQueue
}

// IsFanout reports whether every routing key reaches every bound queue.
func (c Config) IsFanout() bool {
	if c.Kind == KindFanout {
		return true
	}
	if c.Kind == KindDelayed {
		t, _ := c.Arguments[DelayedTypeArgument].(string)
		return t == KindFanout
	}
	return false
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	switch c.Kind {
	case KindQueue, KindDirect, KindFanout, KindTopic, KindDelayed:
	default:
		return fmt.Errorf("%w: '%s', only 'direct', 'fanout', 'topic' and 'x-delayed-message' are allowed", ErrUnsupportedKind, c.Kind)
	}
	for i, r := range c.Routes {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: routes[%d] of %s is blank", ErrInvalidRoute, i, c.Name)
		}
	}
	for i, q := range c.Queues {
		if strings.TrimSpace(q.Name) == "" {
			return fmt.Errorf("publisher %s: queues[%d].name cannot be empty", c.Name, i)
		}
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("publisher %s: rate_limit cannot be negative", c.Name)
	}
	if c.CircuitBreaker.Enabled && c.CircuitBreaker.FailureThreshold < 1 {
		return fmt.Errorf("publisher %s: circuit_breaker.failure_threshold must be at least 1", c.Name)
	}
	return nil
}

// Bindings returns the queues of the destination with blank routing keys
// removed and defaults applied. A queue publisher, or an exchange without
// queues, gets one queue named after the destination; the latter is bound
// with the configured routes.
func (c Config) Bindings() []QueueBinding {
	queues := c.Queues
	switch {
	case !c.IsExchange():
		queues = []QueueBinding{{Name: c.Name}}
	case len(queues) == 0:
		queues = []QueueBinding{{Name: c.Name, RoutingKeys: c.Routes}}
	}

	out := make([]QueueBinding, 0, len(queues))
	for _, q := range queues {
		keys := nonBlank(q.RoutingKeys)
		if len(keys) == 0 {
			keys = []string{q.Name}
		}
		out = append(out, QueueBinding{Name: q.Name, RoutingKeys: keys})
	}
	return out
}

// routes returns the accepted routing keys: the configured routes, or the
// routing keys of the bindings when none are configured.
func (c Config) routes() []string {
	if !c.IsExchange() {
		return []string{c.Name}
	}
	if len(c.Routes) > 0 {
		return slices.Clone(c.Routes)
	}
	var routes []string
	for _, b := range c.Bindings() {
		for _, key := range b.RoutingKeys {
			if !slices.Contains(routes, key) {
				routes = append(routes, key)
			}
		}
	}
	return routes
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// RetryConfig describes the delayed fanout exchange that feeds failed
// messages back into queue.
func RetryConfig(exchange, queue string) Config {
	return Config{
		Name:      exchange,
		Kind:      KindDelayed,
		Arguments: map[string]any{DelayedTypeArgument: KindFanout},
		Queues:    []QueueBinding{{Name: queue}},
	}
}

// DeadConfig describes the queue receiving dead letter records.
func DeadConfig(queue string) Config {
	return Config{
		Name: queue,
		Kind: KindQueue,
	}
}
