// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package consumer

// Envelope is a decoded delivery waiting in a batch.
type Envelope[T any] struct {
	Message T
	// Body is the raw delivery body, re-published as is on retry and dead
	// lettering.
	Body []byte
	Tag  uint64
	// Delay is the next retry delay in milliseconds; zero means the retry
	// budget is exhausted.
	Delay uint64
}

// Batch is a group of envelopes handled and acknowledged together.
type Batch[T any] struct {
	Envelopes []Envelope[T]
	// LastTag is the delivery tag of the last envelope; acknowledging it
	// with multiple set covers the whole batch.
	LastTag uint64

	// rejected carries an undecodable delivery instead of envelopes.
	rejected *rejection
}

// rejection is an undecodable delivery, dead lettered and acknowledged on
// its own once the batches before it are resolved.
type rejection struct {
	tag   uint64
	body  []byte
	cause *DecodeError
}

// Len returns the number of envelopes.
func (b Batch[T]) Len() int {
	return len(b.Envelopes)
}

// Messages returns the decoded messages in delivery order.
func (b Batch[T]) Messages() []T {
	msgs := make([]T, len(b.Envelopes))
	for i, env := range b.Envelopes {
		msgs[i] = env.Message
	}
	return msgs
}

// partition splits the envelopes into those with retries left and those to
// dead letter.
func (b Batch[T]) partition() (retries, dead []Envelope[T]) {
	for _, env := range b.Envelopes {
		if env.Delay > 0 {
			retries = append(retries, env)
			continue
		}
		dead = append(dead, env)
	}
	return retries, dead
}
