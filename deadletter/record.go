// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package deadletter

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/absmach/courier/internal/bufpool"
)

// Record is the dead letter payload published to the dead queue.
type Record struct {
	ID            string    `json:"Id"`
	ExceptionType string    `json:"ExceptionType"`
	Exception     string    `json:"Exception"`
	MessageType   string    `json:"MessageType"`
	Message       string    `json:"Message"`
	Queue         string    `json:"Queue,omitempty"`
	FailedAt      time.Time `json:"FailedAt"`
}

// Encode returns the JSON form of the record.
func (r Record) Encode() ([]byte, error) {
	return bufpool.Encode(func(b *bytes.Buffer) error {
		enc := json.NewEncoder(b)
		enc.SetEscapeHTML(false)
		return enc.Encode(r)
	})
}

// Decode parses a record published by a Router.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}
