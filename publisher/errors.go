// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package publisher

import "errors"

// Publisher errors.
var (
	ErrNilChannel      = errors.New("publisher: channel cannot be nil")
	ErrEmptyName       = errors.New("publisher: name cannot be empty")
	ErrUnsupportedKind = errors.New("publisher: unsupported exchange kind")
	ErrInvalidRoute    = errors.New("publisher: invalid routing key")
	ErrCircuitOpen     = errors.New("publisher: circuit breaker open")
)
