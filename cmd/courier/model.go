// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var errThrow = errors.New("model requested a failure")

// Model is the demo message exchanged by the publish and consume commands.
type Model struct {
	ID    int       `json:"id"`
	Name  string    `json:"name"`
	Date  time.Time `json:"date"`
	Throw bool      `json:"throw"`
}

// modelHandler logs models and fails on those asking to.
type modelHandler struct {
	logger *slog.Logger
}

func (h modelHandler) Handle(ctx context.Context, m Model) error {
	return h.HandleBatch(ctx, []Model{m})
}

func (h modelHandler) HandleBatch(_ context.Context, models []Model) error {
	for _, m := range models {
		h.logger.Info("handling model",
			slog.Int("id", m.ID),
			slog.String("name", m.Name),
			slog.Bool("throw", m.Throw))
		if m.Throw {
			return errThrow
		}
	}
	return nil
}
