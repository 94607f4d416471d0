// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/absmach/courier/topology"
	"github.com/spf13/cobra"
)

var declareCmd = &cobra.Command{
	Use:   "declare",
	Short: "Declare the queues and exchanges of every configured consumer and publisher",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		conn, err := connect()
		if err != nil {
			return err
		}
		defer conn.Close()

		ch, err := conn.Topology(cmd.Context())
		if err != nil {
			return err
		}
		defer ch.Close()

		d, err := topology.New(ch, logger)
		if err != nil {
			return err
		}
		return d.Declare(cfg.Consumers, cfg.Publishers)
	},
}
