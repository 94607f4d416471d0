// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package consumer

import "sync/atomic"

// Stats tracks consumer statistics.
type Stats struct {
	// Delivery
	Received       uint64 // Deliveries received
	DecodeFailures uint64 // Deliveries that could not be decoded

	// Handling
	Batches        uint64 // Batches handled
	Handled        uint64 // Messages handled successfully
	Failed         uint64 // Messages in failed batches
	Retried        uint64 // Messages re-published for retry
	Dead           uint64 // Messages routed to the dead queue
	RepublishFails uint64 // Failed retry or dead letter publishes

	// Acknowledgement
	Acks  uint64 // Acks sent, single or cumulative
	Nacks uint64 // Requeueing nacks sent
}

// NewStats creates an empty stats instance.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordReceived() {
	atomic.AddUint64(&s.Received, 1)
}

func (s *Stats) recordDecodeFailure() {
	atomic.AddUint64(&s.DecodeFailures, 1)
}

func (s *Stats) recordBatch(count int, failed bool) {
	atomic.AddUint64(&s.Batches, 1)
	if failed {
		atomic.AddUint64(&s.Failed, uint64(count))
		return
	}
	atomic.AddUint64(&s.Handled, uint64(count))
}

func (s *Stats) recordRetried() {
	atomic.AddUint64(&s.Retried, 1)
}

func (s *Stats) recordDead() {
	atomic.AddUint64(&s.Dead, 1)
}

func (s *Stats) recordRepublishFailure() {
	atomic.AddUint64(&s.RepublishFails, 1)
}

func (s *Stats) recordAck() {
	atomic.AddUint64(&s.Acks, 1)
}

func (s *Stats) recordNack() {
	atomic.AddUint64(&s.Nacks, 1)
}

// Snapshot returns a copy of the current stats.
func (s *Stats) Snapshot() Stats {
	return Stats{
		Received:       atomic.LoadUint64(&s.Received),
		DecodeFailures: atomic.LoadUint64(&s.DecodeFailures),
		Batches:        atomic.LoadUint64(&s.Batches),
		Handled:        atomic.LoadUint64(&s.Handled),
		Failed:         atomic.LoadUint64(&s.Failed),
		Retried:        atomic.LoadUint64(&s.Retried),
		Dead:           atomic.LoadUint64(&s.Dead),
		RepublishFails: atomic.LoadUint64(&s.RepublishFails),
		Acks:           atomic.LoadUint64(&s.Acks),
		Nacks:          atomic.LoadUint64(&s.Nacks),
	}
}
