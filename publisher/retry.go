// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package publisher

import (
	"context"
	"math"

	"github.com/absmach/courier/broker"
	"github.com/absmach/courier/retry"
)

// Retrier re-publishes a raw body to a retry exchange, carrying the delay
// the broker should hold it for.
type Retrier struct {
	emitter Emitter
	header  string
}

// NewRetrier creates a retry adapter. An empty header means x-delay.
func NewRetrier(emitter Emitter, header string) *Retrier {
	if header == "" {
		header = retry.DefaultDelayHeader
	}
	return &Retrier{
		emitter: emitter,
		header:  header,
	}
}

// Header returns the delay header name.
func (r *Retrier) Header() string {
	return r.header
}

// Retry publishes body with the delay header set to delay milliseconds.
func (r *Retrier) Retry(ctx context.Context, body []byte, delay uint64) error {
	// AMQP tables have no unsigned 64 bit type.
	d := int64(math.MaxInt64)
	if delay < math.MaxInt64 {
		d = int64(delay)
	}
	return r.emitter.Publish(ctx, "", broker.Headers{r.header: d}, body)
}
