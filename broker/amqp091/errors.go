// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package amqp091

import "errors"

// Connection errors.
var (
	ErrNoAddress        = errors.New("no broker address configured")
	ErrInvalidPort      = errors.New("broker port out of range")
	ErrAlreadyConnected = errors.New("connection already established")
	ErrNilChannel       = errors.New("amqp channel cannot be nil")
)
