// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package broker

import "errors"

// Channel errors.
var (
	ErrChannelClosed   = errors.New("broker channel closed")
	ErrNotConnected    = errors.New("broker not connected")
	ErrInvalidQueue    = errors.New("queue name cannot be empty")
	ErrInvalidExchange = errors.New("exchange name cannot be empty")
)
