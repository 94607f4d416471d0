// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/absmach/courier/publisher"
	"github.com/spf13/cobra"
)

var (
	publishRoute string
	publishCount int
	publishName  string
	publishThrow bool
	publishDelay time.Duration
)

var publishCmd = &cobra.Command{
	Use:   "publish <publisher>",
	Short: "Publish demo models through a configured publisher",
	Long: `Publish demo models through a publisher. Publishers missing from the
configuration publish straight to the queue of the same name.

Examples:
  courier publish orders -n 10
  courier publish events --route order.created --throw
  courier publish reminders --delay 30s`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishRoute, "route", "r", "", "Routing key (default route when empty)")
	publishCmd.Flags().IntVarP(&publishCount, "count", "n", 1, "Number of models to publish")
	publishCmd.Flags().StringVar(&publishName, "name", "model", "Model name")
	publishCmd.Flags().BoolVar(&publishThrow, "throw", false, "Ask the consumer to fail on the models")
	publishCmd.Flags().DurationVar(&publishDelay, "delay", 0, "Publish with a delay header")
}

func runPublish(cmd *cobra.Command, args []string) error {
	if publishCount < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	pc, ok := cfg.Publisher(args[0])
	if !ok {
		pc = publisher.Config{Name: args[0]}
	}

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel(cmd.Context())
	if err != nil {
		return err
	}
	defer ch.Close()

	ep, err := publisher.NewEndpoint(ch, pc, publisher.WithLogger(logger), publisher.WithMetrics(metrics))
	if err != nil {
		return err
	}
	pub := publisher.New[Model](ep, nil)

	models := make([]Model, publishCount)
	for i := range models {
		models[i] = Model{
			ID:    i + 1,
			Name:  fmt.Sprintf("%s%d", publishName, i+1),
			Date:  time.Now().UTC(),
			Throw: publishThrow,
		}
	}

	if publishDelay > 0 {
		for _, m := range models {
			if err := pub.PublishDelayed(cmd.Context(), m, publishDelay); err != nil {
				return err
			}
		}
		return nil
	}
	return pub.PublishAllTo(cmd.Context(), publishRoute, models)
}
