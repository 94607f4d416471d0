// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the message serializers used by publishers and
// consumers.
package codec

import (
	"encoding/json"
	"errors"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Content types.
const (
	ContentTypeJSON = "application/json"
)

// ErrNilFactory is returned when a ProtoJSON codec has no message factory.
var ErrNilFactory = errors.New("codec: message factory cannot be nil")

// Codec converts messages of type T to and from their wire form.
type Codec[T any] interface {
	Encode(msg T) ([]byte, error)
	Decode(data []byte) (T, error)
	ContentType() string
}

// TypeName returns the Go type name of T, e.g. "orders.Order".
func TypeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// JSON encodes messages with encoding/json.
type JSON[T any] struct{}

var _ Codec[struct{}] = JSON[struct{}]{}

// Encode implements Codec.
func (JSON[T]) Encode(msg T) ([]byte, error) {
	return json.Marshal(msg)
}

// Decode implements Codec.
func (JSON[T]) Decode(data []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// ContentType implements Codec.
func (JSON[T]) ContentType() string {
	return ContentTypeJSON
}

// ProtoJSON encodes protobuf messages in their canonical JSON form, which
// keeps bodies readable in dead letter records.
type ProtoJSON[T proto.Message] struct {
	// New allocates an empty message to decode into.
	New func() T

	Marshal   protojson.MarshalOptions
	Unmarshal protojson.UnmarshalOptions
}

// NewProtoJSON returns a ProtoJSON codec using newMsg as factory.
func NewProtoJSON[T proto.Message](newMsg func() T) ProtoJSON[T] {
	return ProtoJSON[T]{
		New:       newMsg,
		Unmarshal: protojson.UnmarshalOptions{DiscardUnknown: true},
	}
}

// Encode implements Codec.
func (c ProtoJSON[T]) Encode(msg T) ([]byte, error) {
	return c.Marshal.Marshal(msg)
}

// Decode implements Codec.
func (c ProtoJSON[T]) Decode(data []byte) (T, error) {
	if c.New == nil {
		var zero T
		return zero, ErrNilFactory
	}
	msg := c.New()
	if err := c.Unmarshal.Unmarshal(data, msg); err != nil {
		var zero T
		return zero, err
	}
	return msg, nil
}

// ContentType implements Codec.
func (ProtoJSON[T]) ContentType() string {
	return ContentTypeJSON
}
