// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package consumer

import (
	"errors"
	"fmt"
)

// Consumer errors.
var (
	ErrHandlerNotImplemented = errors.New("consumer: handler not implemented for the configured batch size")
	ErrEmptyName             = errors.New("consumer: name cannot be empty")
	ErrInvalidAckPolicy      = errors.New("consumer: invalid ack policy")
	ErrNilChannelSource      = errors.New("consumer: channel source cannot be nil")
	ErrAlreadyStarted        = errors.New("consumer: already started")
	ErrNotStarted            = errors.New("consumer: not started")
)

// DecodeError is a delivery body that could not be decoded. It is never
// retried.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// HandlerError is an error returned by a handler.
type HandlerError struct {
	Err error
}

func (e *HandlerError) Error() string {
	return "handler failed: " + e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}
