// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package retry implements the retry ladder: the ascending sequence of
// redelivery delays a consumer walks through before a message is dead.
package retry

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// MinInterval is the smallest accepted retry delay in milliseconds.
// Shorter intervals are dropped from the ladder, not clamped.
const MinInterval uint64 = 5000

// DefaultDelayHeader is the header the delayed-message exchange reads.
const DefaultDelayHeader = "x-delay"

// Ladder is an ascending, deduplicated sequence of delays in milliseconds.
// Its length is the maximum number of retries a message gets.
type Ladder []uint64

// NewLadder builds a ladder from arbitrary intervals.
func NewLadder(intervals []uint64) Ladder {
	ladder := make(Ladder, 0, len(intervals))
	for _, iv := range intervals {
		if iv < MinInterval {
			continue
		}
		ladder = append(ladder, iv)
	}
	slices.Sort(ladder)
	return slices.Compact(ladder)
}

// NextDelay returns the first interval strictly greater than previous,
// or 0 when the ladder is exhausted.
func NextDelay(ladder Ladder, previous uint64) uint64 {
	for _, d := range ladder {
		if d > previous {
			return d
		}
	}
	return 0
}

// Next is NextDelay bound to the ladder.
func (l Ladder) Next(previous uint64) uint64 {
	return NextDelay(l, previous)
}

// Attempts returns the number of retries the ladder allows.
func (l Ladder) Attempts() int {
	return len(l)
}

// PreviousDelay reads the delay a message was last redelivered with.
// The delayed-message exchange rewrites the header to a negative value on
// delivery, so the magnitude is used. Absent or malformed values yield 0.
func PreviousDelay(headers map[string]any, key string) uint64 {
	if headers == nil {
		return 0
	}
	v, ok := headers[key]
	if !ok {
		return 0
	}

	switch n := v.(type) {
	case int:
		return abs(int64(n))
	case int8:
		return abs(int64(n))
	case int16:
		return abs(int64(n))
	case int32:
		return abs(int64(n))
	case int64:
		return abs(n)
	case uint:
		return uint64(n)
	case uint8:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint32:
		return uint64(n)
	case uint64:
		return n
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case string:
		return fromString(n)
	case []byte:
		return fromString(string(n))
	default:
		return 0
	}
}

func abs(n int64) uint64 {
	if n < 0 {
		// -MinInt64 overflows; its magnitude still fits in uint64.
		return uint64(-(n + 1)) + 1
	}
	return uint64(n)
}

func fromFloat(f float64) uint64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Abs(f)
	if f >= math.MaxUint64 {
		return 0
	}
	return uint64(f)
}

func fromString(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0
		}
		return u
	}
	return abs(n)
}
