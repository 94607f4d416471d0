// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/absmach/courier/broker/amqp091"
	"github.com/absmach/courier/config"
	mtls "github.com/absmach/courier/pkg/tls"
	"github.com/absmach/courier/telemetry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

var (
	configFile string

	cfg          *config.Config
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	otelShutdown func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Reliable batched consuming and publishing over RabbitMQ",
	Long: `courier consumes RabbitMQ queues in batches, retries failed messages
through a delayed-message exchange and routes exhausted or undecodable
messages to a dead queue.`,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(declareCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(deadCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}

	logger = newLogger(cfg.Log)
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitProvider(cmd.Context(), cfg.Telemetry, uuid.NewString())
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	otelShutdown = shutdown

	if cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled {
		m, err := telemetry.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		metrics = m
		logger.Info("OpenTelemetry initialized", slog.String("endpoint", cfg.Telemetry.Endpoint))
	}
	return nil
}

func teardown(*cobra.Command, []string) error {
	if otelShutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return otelShutdown(ctx)
}

func newLogger(c config.LogConfig) *slog.Logger {
	logLevel := slog.LevelInfo
	switch c.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}

// connect dials the configured broker.
func connect() (*amqp091.Connection, error) {
	opts, err := cfg.Connection.Options()
	if err != nil {
		return nil, err
	}
	conn, err := amqp091.Dial(opts, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to broker",
		slog.Any("hosts", opts.Hosts),
		slog.String("security", mtls.SecurityStatus(opts.TLSConfig)))
	return conn, nil
}
