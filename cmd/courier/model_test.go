// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/absmach/courier/broker"
	"github.com/absmach/courier/config"
	"github.com/absmach/courier/deadletter"
	"github.com/absmach/courier/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelHandler(t *testing.T) {
	h := modelHandler{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	ctx := context.Background()

	assert.NoError(t, h.Handle(ctx, Model{ID: 1, Name: "name1"}))
	assert.ErrorIs(t, h.HandleBatch(ctx, []Model{{ID: 1}, {ID: 2, Throw: true}}), errThrow)
}

func TestModelWireFormat(t *testing.T) {
	var m Model
	require.NoError(t, json.Unmarshal([]byte(`{"id":99,"name":"datiko","date":"1988-11-11T00:00:00Z","throw":true}`), &m))
	assert.Equal(t, 99, m.ID)
	assert.Equal(t, "datiko", m.Name)
	assert.True(t, m.Throw)
}

func TestNewLogger(t *testing.T) {
	logger := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = newLogger(config.LogConfig{Level: "warn", Format: "text"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

type failingEmitter struct {
	err error
}

func (e failingEmitter) Publish(context.Context, string, broker.Headers, []byte) error {
	return e.err
}

func TestDrainLogsRequeueFailure(t *testing.T) {
	var buf bytes.Buffer
	prevLogger, prevRequeue := logger, deadRequeue
	logger = slog.New(slog.NewTextHandler(&buf, nil))
	deadRequeue = true
	t.Cleanup(func() { logger, deadRequeue = prevLogger, prevRequeue })

	body, err := deadletter.Record{ID: "rec-1", Queue: "orders", Message: `{"id":1}`}.Encode()
	require.NoError(t, err)

	ch := testutil.NewChannel()
	d := broker.Delivery{Tag: 1, Body: body}
	require.NoError(t, drain(context.Background(), ch, failingEmitter{err: errors.New("channel closed")}, d))

	assert.Equal(t, []testutil.Ack{{Tag: 1, Requeue: true}}, ch.Nacks())
	assert.Empty(t, ch.Acks())
	assert.Contains(t, buf.String(), "failed to requeue dead letter")
	assert.Contains(t, buf.String(), "channel closed")
	assert.Contains(t, buf.String(), "rec-1")
}
