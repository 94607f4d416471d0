// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package consumer_test

import (
	"testing"
	"time"

	"github.com/absmach/courier/consumer"
	"github.com/absmach/courier/retry"
	"github.com/stretchr/testify/assert"
)

func TestConfigNormalize(t *testing.T) {
	cfg := consumer.Config{Name: "orders", Workers: -2, BatchSize: 0}.Normalize()

	assert.Equal(t, "orders", cfg.Queue)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 1, cfg.BatchSize)
	assert.Equal(t, 1, cfg.Prefetch)
	assert.Equal(t, 60*time.Second, cfg.DischargeInterval)
	assert.Equal(t, "x-delay", cfg.DelayHeader)
	assert.Equal(t, "-retry", cfg.RetrySuffix)
	assert.Equal(t, "-dead", cfg.DeadSuffix)
	assert.Equal(t, consumer.AckAlways, cfg.AckPolicy)

	cfg = consumer.Config{Name: "orders", Queue: "orders.v2", BatchSize: 50}.Normalize()
	assert.Equal(t, "orders.v2", cfg.Queue)
	assert.Equal(t, 50, cfg.Prefetch)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     consumer.Config
		wantErr error
		err     bool
	}{
		{name: "valid", cfg: consumer.Config{Name: "orders", BatchSize: 10}},
		{name: "confirmed", cfg: consumer.Config{Name: "orders", AckPolicy: consumer.AckConfirmed}},
		{name: "empty name", cfg: consumer.Config{}, wantErr: consumer.ErrEmptyName},
		{name: "bad policy", cfg: consumer.Config{Name: "orders", AckPolicy: "never"}, wantErr: consumer.ErrInvalidAckPolicy},
		{name: "negative sizes coerced", cfg: consumer.Config{Name: "orders", Workers: -2, BatchSize: -5, Prefetch: -1}},
		{name: "prefetch below batch", cfg: consumer.Config{Name: "orders", BatchSize: 10, Prefetch: 5}, err: true},
		{name: "prefetch too large", cfg: consumer.Config{Name: "orders", BatchSize: 10, Prefetch: consumer.MaxPrefetch + 1}, err: true},
		{name: "batch too large", cfg: consumer.Config{Name: "orders", BatchSize: consumer.MaxPrefetch + 1}, err: true},
		{name: "largest prefetch", cfg: consumer.Config{Name: "orders", BatchSize: consumer.MaxPrefetch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.err:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigNames(t *testing.T) {
	cfg := consumer.Config{Name: "orders"}.Normalize()
	assert.Equal(t, "orders-retry", cfg.RetryExchange())
	assert.Equal(t, "orders-dead", cfg.DeadQueue())

	cfg = consumer.Config{Name: "orders", RetrySuffix: ".retry", DeadSuffix: ".dlq"}.Normalize()
	assert.Equal(t, "orders.retry", cfg.RetryExchange())
	assert.Equal(t, "orders.dlq", cfg.DeadQueue())
}

func TestConfigLadder(t *testing.T) {
	cfg := consumer.Config{Name: "orders", RetryIntervals: []uint64{1000, 6000, 3000}}
	assert.Equal(t, retry.Ladder{6000}, cfg.Ladder())
}
