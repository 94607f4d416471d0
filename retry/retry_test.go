// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLadder(t *testing.T) {
	tests := []struct {
		name      string
		intervals []uint64
		want      Ladder
	}{
		{
			name:      "drops intervals below floor",
			intervals: []uint64{1000, 6000, 3000},
			want:      Ladder{6000},
		},
		{
			name:      "sorts ascending",
			intervals: []uint64{20000, 5000, 10000},
			want:      Ladder{5000, 10000, 20000},
		},
		{
			name:      "removes duplicates",
			intervals: []uint64{5000, 5000, 7000, 7000, 5000},
			want:      Ladder{5000, 7000},
		},
		{
			name:      "floor is inclusive",
			intervals: []uint64{4999, 5000},
			want:      Ladder{5000},
		},
		{
			name:      "empty input",
			intervals: nil,
			want:      Ladder{},
		},
		{
			name:      "everything below floor",
			intervals: []uint64{1, 2, 4999},
			want:      Ladder{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLadder(tt.intervals)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), got.Attempts())
		})
	}
}

func TestNewLadderDoesNotMutateInput(t *testing.T) {
	in := []uint64{20000, 5000, 10000}
	_ = NewLadder(in)
	assert.Equal(t, []uint64{20000, 5000, 10000}, in)
}

func TestNextDelay(t *testing.T) {
	ladder := Ladder{5000, 10000, 20000}

	tests := []struct {
		previous uint64
		want     uint64
	}{
		{0, 5000},
		{1, 5000},
		{5000, 10000},
		{7500, 10000},
		{10000, 20000},
		{20000, 0},
		{math.MaxUint64, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NextDelay(ladder, tt.previous), "previous=%d", tt.previous)
		assert.Equal(t, tt.want, ladder.Next(tt.previous), "previous=%d", tt.previous)
	}
}

func TestNextDelayEmptyLadder(t *testing.T) {
	assert.Zero(t, NextDelay(nil, 0))
	assert.Zero(t, NextDelay(Ladder{}, 5000))
}

func TestNextDelayProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		raw := make([]uint64, r.Intn(8))
		for j := range raw {
			raw[j] = uint64(r.Intn(60000))
		}
		ladder := NewLadder(raw)
		previous := uint64(r.Intn(70000))

		got := NextDelay(ladder, previous)
		// Same input, same output.
		require.Equal(t, got, NextDelay(ladder, previous))

		if got == 0 {
			for _, d := range ladder {
				require.LessOrEqual(t, d, previous)
			}
			continue
		}
		require.Greater(t, got, previous)
		require.Contains(t, ladder, got)
		for _, d := range ladder {
			if d > previous {
				require.LessOrEqual(t, got, d)
			}
		}
	}
}

func TestNextDelayWalksWholeLadder(t *testing.T) {
	ladder := NewLadder([]uint64{30000, 5000, 10000, 1000})

	var (
		previous uint64
		steps    []uint64
	)
	for {
		next := NextDelay(ladder, previous)
		if next == 0 {
			break
		}
		steps = append(steps, next)
		previous = next
	}

	assert.Equal(t, []uint64{5000, 10000, 30000}, steps)
	assert.Len(t, steps, ladder.Attempts())
}

func TestPreviousDelay(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]any
		want    uint64
	}{
		{"nil headers", nil, 0},
		{"absent", map[string]any{"other": int64(1)}, 0},
		{"int64", map[string]any{"x-delay": int64(5000)}, 5000},
		{"negative int64", map[string]any{"x-delay": int64(-10000)}, 10000},
		{"int32", map[string]any{"x-delay": int32(7000)}, 7000},
		{"int", map[string]any{"x-delay": 6000}, 6000},
		{"int16", map[string]any{"x-delay": int16(-300)}, 300},
		{"int8", map[string]any{"x-delay": int8(12)}, 12},
		{"uint64", map[string]any{"x-delay": uint64(9000)}, 9000},
		{"uint32", map[string]any{"x-delay": uint32(9001)}, 9001},
		{"uint16", map[string]any{"x-delay": uint16(9002)}, 9002},
		{"uint8", map[string]any{"x-delay": uint8(9)}, 9},
		{"uint", map[string]any{"x-delay": uint(11)}, 11},
		{"float64", map[string]any{"x-delay": float64(5000.7)}, 5000},
		{"float32", map[string]any{"x-delay": float32(-20000)}, 20000},
		{"NaN", map[string]any{"x-delay": math.NaN()}, 0},
		{"Inf", map[string]any{"x-delay": math.Inf(1)}, 0},
		{"string", map[string]any{"x-delay": " 15000 "}, 15000},
		{"negative string", map[string]any{"x-delay": "-15000"}, 15000},
		{"huge unsigned string", map[string]any{"x-delay": "18446744073709551615"}, math.MaxUint64},
		{"bytes", map[string]any{"x-delay": []byte("8000")}, 8000},
		{"malformed string", map[string]any{"x-delay": "soon"}, 0},
		{"empty string", map[string]any{"x-delay": ""}, 0},
		{"bool", map[string]any{"x-delay": true}, 0},
		{"min int64", map[string]any{"x-delay": int64(math.MinInt64)}, 1 << 63},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreviousDelay(tt.headers, DefaultDelayHeader))
		})
	}
}

func TestPreviousDelayCustomKey(t *testing.T) {
	headers := map[string]any{"x-retry-after": int64(12000), "x-delay": int64(5000)}
	assert.Equal(t, uint64(12000), PreviousDelay(headers, "x-retry-after"))
}
