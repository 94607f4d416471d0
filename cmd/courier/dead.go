// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/absmach/courier/broker"
	"github.com/absmach/courier/consumer"
	"github.com/absmach/courier/deadletter"
	"github.com/absmach/courier/publisher"
	"github.com/spf13/cobra"
)

var deadRequeue bool

var deadCmd = &cobra.Command{
	Use:   "dead <consumer>",
	Short: "Drain the dead queue of a consumer",
	Long: `Drain the dead queue of a consumer, logging every dead letter record.
With --requeue the original message is published back to the consumer queue.

Examples:
  courier dead orders
  courier dead orders --requeue`,
	Args: cobra.ExactArgs(1),
	RunE: runDead,
}

func init() {
	deadCmd.Flags().BoolVar(&deadRequeue, "requeue", false, "Publish dead messages back to the consumer queue")
}

func runDead(cmd *cobra.Command, args []string) error {
	cc, ok := cfg.Consumer(args[0])
	if !ok {
		cc = consumer.Config{Name: args[0]}
	}
	cc = cc.Normalize()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	requeue, err := publisher.NewEndpoint(ch, publisher.Config{Name: cc.Queue}, publisher.WithLogger(logger))
	if err != nil {
		return err
	}

	tag := fmt.Sprintf("dead-%s", cc.Name)
	deliveries, err := ch.Consume(ctx, cc.DeadQueue(), tag)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ch.Cancel(tag)
		case d, ok := <-deliveries:
			if !ok {
				return broker.ErrChannelClosed
			}
			if err := drain(ctx, ch, requeue, d); err != nil {
				return err
			}
		}
	}
}

func drain(ctx context.Context, ch broker.Channel, requeue publisher.Emitter, d broker.Delivery) error {
	rec, err := deadletter.Decode(d.Body)
	if err != nil {
		logger.Warn("malformed dead letter record",
			slog.Uint64("tag", d.Tag),
			slog.String("error", err.Error()))
		return ch.Reject(d.Tag, false)
	}

	logger.Info("dead letter",
		slog.String("id", rec.ID),
		slog.String("queue", rec.Queue),
		slog.String("exception_type", rec.ExceptionType),
		slog.String("exception", rec.Exception),
		slog.String("message_type", rec.MessageType),
		slog.String("message", rec.Message),
		slog.Time("failed_at", rec.FailedAt))

	if deadRequeue {
		if err := requeue.Publish(ctx, "", nil, []byte(rec.Message)); err != nil {
			logger.Error("failed to requeue dead letter",
				slog.String("id", rec.ID),
				slog.String("queue", rec.Queue),
				slog.String("error", err.Error()))
			return ch.Nack(d.Tag, false, true)
		}
	}
	return ch.Ack(d.Tag, false)
}
