// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/absmach/courier/consumer"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

var consumeCmd = &cobra.Command{
	Use:   "consume <consumer>",
	Short: "Consume demo models with a configured consumer until interrupted",
	Long: `Consume demo models with a consumer. Models published with --throw fail
and walk the retry ladder before being dead lettered.

Examples:
  courier consume orders
  courier consume orders -c courier.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runConsume,
}

func runConsume(cmd *cobra.Command, args []string) error {
	cc, ok := cfg.Consumer(args[0])
	if !ok {
		cc = consumer.Config{Name: args[0]}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	h := modelHandler{logger: logger}
	c, err := consumer.New[Model](cc, conn, nil,
		consumer.WithHandler[Model](h),
		consumer.WithBatchHandler[Model](h),
		consumer.WithLogger(logger),
		consumer.WithMetrics(metrics),
		consumer.WithTracer(otel.Tracer("courier")),
	)
	if err != nil {
		return err
	}
	if err := c.StartConsuming(ctx); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- c.Wait()
	}()

	select {
	case <-ctx.Done():
		err = c.Stop()
	case err = <-done:
	}

	stats := c.Stats()
	logger.Info("consumer statistics",
		slog.Uint64("received", stats.Received),
		slog.Uint64("handled", stats.Handled),
		slog.Uint64("retried", stats.Retried),
		slog.Uint64("dead", stats.Dead),
		slog.Uint64("decode_failures", stats.DecodeFailures))

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
