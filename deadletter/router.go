// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package deadletter routes messages that can no longer be processed to a
// dead queue.
package deadletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/courier/broker"
	"github.com/google/uuid"
)

// ErrNilEmitter is returned when a router has nothing to publish with.
var ErrNilEmitter = errors.New("deadletter: emitter cannot be nil")

// Emitter publishes raw bodies to the dead queue.
type Emitter interface {
	Publish(ctx context.Context, route string, headers broker.Headers, body []byte) error
}

// Router publishes dead letter records. A record is published once; a failed
// publish is logged and returned, never retried.
type Router struct {
	queue   string
	emitter Emitter
	logger  *slog.Logger
	now     func() time.Time
}

// NewRouter creates a router for messages consumed from queue.
func NewRouter(queue string, emitter Emitter, logger *slog.Logger) (*Router, error) {
	if emitter == nil {
		return nil, ErrNilEmitter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		queue:   queue,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Route publishes a record describing why body of messageType failed.
func (r *Router) Route(ctx context.Context, cause error, messageType string, body []byte) error {
	rec := r.record(cause, messageType, body)
	data, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode dead letter record: %w", err)
	}

	if err := r.emitter.Publish(ctx, "", nil, data); err != nil {
		r.logger.Error("failed to route message to dead queue",
			slog.String("queue", r.queue),
			slog.String("id", rec.ID),
			slog.String("exception", rec.Exception),
			slog.String("message", rec.Message),
			slog.String("error", err.Error()))
		return err
	}

	r.logger.Warn("message routed to dead queue",
		slog.String("queue", r.queue),
		slog.String("id", rec.ID),
		slog.String("exception_type", rec.ExceptionType),
		slog.String("exception", rec.Exception))
	return nil
}

func (r *Router) record(cause error, messageType string, body []byte) Record {
	rec := Record{
		ID:          uuid.NewString(),
		MessageType: messageType,
		Message:     string(body),
		Queue:       r.queue,
		FailedAt:    r.now().UTC(),
	}
	if cause != nil {
		rec.ExceptionType = fmt.Sprintf("%T", cause)
		rec.Exception = cause.Error()
	}
	return rec
}
