// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package consumer

import "context"

// Handler handles one message. It is used when the batch size is 1.
type Handler[T any] interface {
	Handle(ctx context.Context, msg T) error
}

// BatchHandler handles a batch of messages. It is used when the batch size
// is greater than 1. A returned error fails the whole batch.
type BatchHandler[T any] interface {
	HandleBatch(ctx context.Context, msgs []T) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T any] func(ctx context.Context, msg T) error

// Handle calls f.
func (f HandlerFunc[T]) Handle(ctx context.Context, msg T) error {
	return f(ctx, msg)
}

// BatchHandlerFunc adapts a function to BatchHandler.
type BatchHandlerFunc[T any] func(ctx context.Context, msgs []T) error

// HandleBatch calls f.
func (f BatchHandlerFunc[T]) HandleBatch(ctx context.Context, msgs []T) error {
	return f(ctx, msgs)
}

type handleFunc[T any] func(ctx context.Context, msgs []T) error

// resolveHandler picks the handler form required by batchSize.
func resolveHandler[T any](batchSize int, single, batch any) (handleFunc[T], error) {
	if batchSize == 1 {
		h, ok := single.(Handler[T])
		if !ok {
			return nil, ErrHandlerNotImplemented
		}
		return func(ctx context.Context, msgs []T) error {
			for _, msg := range msgs {
				if err := h.Handle(ctx, msg); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}

	h, ok := batch.(BatchHandler[T])
	if !ok {
		return nil, ErrHandlerNotImplemented
	}
	return h.HandleBatch, nil
}
