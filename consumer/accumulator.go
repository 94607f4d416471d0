// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package consumer

import (
	"context"
	"sync"
	"time"
)

// Accumulator groups envelopes into batches, by count or by time.
// Discharged batches are sent on the output channel; a full output channel
// blocks the discharge until a batch is taken or the accumulator is closed.
type Accumulator[T any] struct {
	mu       sync.Mutex
	size     int
	interval time.Duration
	buf      []Envelope[T]
	lastTag  uint64

	out       chan<- Batch[T]
	stop      chan struct{}
	closeOnce sync.Once
}

// NewAccumulator creates an accumulator discharging batches of up to
// batchSize envelopes on out, and partial batches every interval.
func NewAccumulator[T any](batchSize int, interval time.Duration, out chan<- Batch[T]) *Accumulator[T] {
	if batchSize < 1 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = DefaultDischargeInterval
	}
	return &Accumulator[T]{
		size:     batchSize,
		interval: interval,
		buf:      make([]Envelope[T], 0, batchSize),
		out:      out,
		stop:     make(chan struct{}),
	}
}

// Preserve appends env and discharges when the batch is full.
func (a *Accumulator[T]) Preserve(env Envelope[T]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf = append(a.buf, env)
	a.lastTag = env.Tag
	if len(a.buf) >= a.size {
		a.discharge()
	}
}

// Discharge emits the buffered envelopes as one batch. It reports false
// when the buffer was empty or the accumulator is closed.
func (a *Accumulator[T]) Discharge() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discharge()
}

// Len returns the number of buffered envelopes.
func (a *Accumulator[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// Run discharges partial batches every interval until ctx is done, then
// closes the accumulator.
func (a *Accumulator[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	defer a.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case <-ticker.C:
			a.Discharge()
		}
	}
}

// Close releases a blocked discharge. Buffered envelopes are dropped; their
// deliveries stay unacknowledged.
func (a *Accumulator[T]) Close() {
	a.closeOnce.Do(func() {
		close(a.stop)
	})
}

func (a *Accumulator[T]) discharge() bool {
	if len(a.buf) == 0 {
		return false
	}
	select {
	case <-a.stop:
		return false
	default:
	}

	batch := Batch[T]{
		Envelopes: a.buf,
		LastTag:   a.lastTag,
	}
	a.buf = make([]Envelope[T], 0, a.size)

	select {
	case a.out <- batch:
		return true
	case <-a.stop:
		return false
	}
}
