// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/absmach/courier/broker"
	"github.com/absmach/courier/codec"
	"github.com/absmach/courier/deadletter"
	"github.com/absmach/courier/publisher"
	"github.com/absmach/courier/retry"
	"github.com/absmach/courier/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// worker consumes one queue on one broker channel. Deliveries are decoded
// and accumulated on the receiving goroutine; discharged batches are handled
// and acknowledged in order on the resolving goroutine.
type worker[T any] struct {
	name     string
	cfg      Config
	ladder   retry.Ladder
	typeName string

	ch      broker.Channel
	codec   codec.Codec[T]
	handle  handleFunc[T]
	retrier *publisher.Retrier
	router  *deadletter.Router

	acc     *Accumulator[T]
	batches chan Batch[T]

	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	stats   *Stats
}

func newWorker[T any](c *Consumer[T], index int, ch broker.Channel) (*worker[T], error) {
	name := fmt.Sprintf("consumer-%s-%d", c.cfg.Name, index)
	epOpts := []publisher.Option{
		publisher.WithLogger(c.logger),
		publisher.WithMetrics(c.metrics),
	}

	retryEP, err := publisher.NewEndpoint(ch, publisher.RetryConfig(c.cfg.RetryExchange(), c.cfg.Queue), epOpts...)
	if err != nil {
		return nil, err
	}
	deadEP, err := publisher.NewEndpoint(ch, publisher.DeadConfig(c.cfg.DeadQueue()), epOpts...)
	if err != nil {
		return nil, err
	}
	router, err := deadletter.NewRouter(c.cfg.Queue, deadEP, c.logger)
	if err != nil {
		return nil, err
	}

	batches := make(chan Batch[T], c.cfg.Prefetch)
	return &worker[T]{
		name:     name,
		cfg:      c.cfg,
		ladder:   c.ladder,
		typeName: codec.TypeName[T](),
		ch:       ch,
		codec:    c.codec,
		handle:   c.handle,
		retrier:  publisher.NewRetrier(retryEP, c.cfg.DelayHeader),
		router:   router,
		acc:      NewAccumulator(c.cfg.BatchSize, c.cfg.DischargeInterval, batches),
		batches:  batches,
		logger:   c.logger.With(slog.String("consumer", name)),
		metrics:  c.metrics,
		tracer:   c.tracer,
		stats:    c.stats,
	}, nil
}

// subscribe sets the prefetch and starts the broker consumer.
func (w *worker[T]) subscribe(ctx context.Context) (<-chan broker.Delivery, error) {
	if err := w.ch.Qos(w.cfg.Prefetch); err != nil {
		return nil, fmt.Errorf("%s: failed to set prefetch: %w", w.name, err)
	}
	deliveries, err := w.ch.Consume(ctx, w.cfg.Queue, w.name)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to consume %s: %w", w.name, w.cfg.Queue, err)
	}
	return deliveries, nil
}

// run blocks until ctx is done or the worker fails. The batch being handled
// when ctx is done is finished; queued batches are left unacknowledged.
func (w *worker[T]) run(ctx context.Context, deliveries <-chan broker.Delivery) error {
	w.logger.Info("consumer worker started",
		slog.String("queue", w.cfg.Queue),
		slog.Int("batch_size", w.cfg.BatchSize),
		slog.Int("prefetch", w.cfg.Prefetch))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.acc.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return w.resolve(gctx)
	})
	g.Go(func() error {
		return w.receive(gctx, deliveries)
	})

	err := g.Wait()
	if cerr := w.ch.Close(); cerr != nil && !errors.Is(cerr, broker.ErrChannelClosed) {
		w.logger.Warn("failed to close channel", slog.String("error", cerr.Error()))
	}
	if err != nil {
		w.logger.Error("consumer worker stopped", slog.String("error", err.Error()))
		return err
	}
	w.logger.Info("consumer worker stopped")
	return nil
}

func (w *worker[T]) receive(ctx context.Context, deliveries <-chan broker.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			if err := w.ch.Cancel(w.name); err != nil {
				w.logger.Warn("failed to cancel consumer", slog.String("error", err.Error()))
			}
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%s: %w", w.name, broker.ErrChannelClosed)
			}
			if err := w.accept(ctx, d); err != nil {
				return err
			}
		}
	}
}

// accept decodes d and hands it to the accumulator. Undecodable deliveries
// are handed to the resolving goroutine, which dead letters and acknowledges
// them on their own.
func (w *worker[T]) accept(ctx context.Context, d broker.Delivery) error {
	w.stats.recordReceived()
	w.metrics.RecordReceived(w.cfg.Name)

	msg, err := w.codec.Decode(d.Body)
	if err != nil {
		w.queueRejection(ctx, d, &DecodeError{Type: w.typeName, Err: err})
		return nil
	}

	previous := retry.PreviousDelay(d.Headers, w.cfg.DelayHeader)
	w.acc.Preserve(Envelope[T]{
		Message: msg,
		Body:    d.Body,
		Tag:     d.Tag,
		Delay:   w.ladder.Next(previous),
	})
	return nil
}

// queueRejection flushes the envelopes accumulated before d and queues d
// behind them, so that its ack follows theirs.
func (w *worker[T]) queueRejection(ctx context.Context, d broker.Delivery, cause *DecodeError) {
	w.stats.recordDecodeFailure()
	w.logger.Warn("failed to decode message",
		slog.Uint64("tag", d.Tag),
		slog.String("error", cause.Error()),
		slog.String("message", string(d.Body)))

	w.acc.Discharge()
	select {
	case w.batches <- Batch[T]{rejected: &rejection{tag: d.Tag, body: d.Body, cause: cause}}:
	case <-ctx.Done():
	}
}

// reject dead letters an undecodable delivery and acknowledges it.
func (w *worker[T]) reject(ctx context.Context, r *rejection) error {
	err := w.router.Route(ctx, r.cause, w.typeName, r.body)
	if err != nil {
		w.stats.recordRepublishFailure()
	} else {
		w.stats.recordDead()
		w.metrics.RecordDead(w.cfg.Name, telemetry.ReasonDecode)
	}

	if err != nil && w.cfg.AckPolicy == AckConfirmed {
		return w.nack(r.tag, false)
	}
	return w.ack(r.tag, false)
}

func (w *worker[T]) resolve(ctx context.Context) error {
	// The batch in hand is finished even when ctx is cancelled meanwhile.
	handleCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-w.batches:
			if ctx.Err() != nil {
				return nil
			}
			if batch.rejected != nil {
				if err := w.reject(handleCtx, batch.rejected); err != nil {
					return err
				}
				continue
			}
			if err := w.resolveBatch(handleCtx, batch); err != nil {
				return err
			}
		}
	}
}

func (w *worker[T]) resolveBatch(ctx context.Context, batch Batch[T]) error {
	ctx, span := w.tracer.Start(ctx, "courier.consumer.handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", w.cfg.Queue),
			attribute.String("messaging.consumer.id", w.name),
			attribute.Int("messaging.batch.message_count", batch.Len()),
		))
	defer span.End()

	start := time.Now()
	err := w.invoke(ctx, batch)
	elapsed := time.Since(start)
	w.stats.recordBatch(batch.Len(), err != nil)
	w.metrics.RecordHandled(w.cfg.Name, batch.Len(), elapsed, err != nil)

	if err == nil {
		w.logger.Debug("consumer has handled messages",
			slog.Int("count", batch.Len()),
			slog.Float64("milliseconds", float64(elapsed)/float64(time.Millisecond)))
		return w.ack(batch.LastTag, true)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	w.logger.Error("consumer has failed to handle messages",
		slog.Int("count", batch.Len()),
		slog.Uint64("last_tag", batch.LastTag),
		slog.String("error", err.Error()))

	if rerr := w.reroute(ctx, batch, err); rerr != nil && w.cfg.AckPolicy == AckConfirmed {
		w.metrics.RecordRequeued(w.cfg.Name, batch.Len())
		return w.nack(batch.LastTag, true)
	}
	return w.ack(batch.LastTag, true)
}

// invoke runs the handler, turning panics into errors.
func (w *worker[T]) invoke(ctx context.Context, batch Batch[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	if err := w.handle(ctx, batch.Messages()); err != nil {
		return &HandlerError{Err: err}
	}
	return nil
}

// reroute re-publishes the envelopes of a failed batch: those with a delay
// to the retry exchange, the others to the dead queue. Both branches run to
// completion; the joined publish errors are returned.
func (w *worker[T]) reroute(ctx context.Context, batch Batch[T], cause error) error {
	retries, dead := batch.partition()
	var he *HandlerError
	if errors.As(cause, &he) {
		cause = he.Err
	}

	var g errgroup.Group
	g.Go(func() error {
		var errs []error
		for _, env := range retries {
			if err := w.retrier.Retry(ctx, env.Body, env.Delay); err != nil {
				w.stats.recordRepublishFailure()
				w.logger.Error("failed to publish message for retry",
					slog.Uint64("tag", env.Tag),
					slog.Uint64("delay", env.Delay),
					slog.String("error", err.Error()),
					slog.String("message", string(env.Body)))
				errs = append(errs, err)
				continue
			}
			w.stats.recordRetried()
			w.metrics.RecordRetried(w.cfg.Name, env.Delay)
		}
		return errors.Join(errs...)
	})
	g.Go(func() error {
		var errs []error
		for _, env := range dead {
			if err := w.router.Route(ctx, cause, w.typeName, env.Body); err != nil {
				w.stats.recordRepublishFailure()
				errs = append(errs, err)
				continue
			}
			w.stats.recordDead()
			w.metrics.RecordDead(w.cfg.Name, telemetry.ReasonExhausted)
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

func (w *worker[T]) ack(tag uint64, multiple bool) error {
	if err := w.ch.Ack(tag, multiple); err != nil {
		return fmt.Errorf("%s: failed to ack tag %d: %w", w.name, tag, err)
	}
	w.stats.recordAck()
	return nil
}

func (w *worker[T]) nack(tag uint64, multiple bool) error {
	if err := w.ch.Nack(tag, multiple, true); err != nil {
		return fmt.Errorf("%s: failed to nack tag %d: %w", w.name, tag, err)
	}
	w.stats.recordNack()
	return nil
}
