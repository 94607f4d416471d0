// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bufpool

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func TestGetReturnsResetBuffer(t *testing.T) {
	b := Get()
	b.WriteString("hello")
	Put(b)

	b2 := Get()
	if b2.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", b2.Len())
	}
	Put(b2)
}

func TestPutDiscardsOversizedBuffer(t *testing.T) {
	b := Get()
	b.Grow(maxPooledCap + 1)
	Put(b) // should be discarded, not panic
}

func TestEncode(t *testing.T) {
	out, err := Encode(func(b *bytes.Buffer) error {
		return json.NewEncoder(b).Encode(map[string]string{"Message": "raw"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"Message":"raw"}` {
		t.Fatalf("unexpected encoding %q", out)
	}

	// The result must not alias a pooled buffer.
	again, err := Encode(func(b *bytes.Buffer) error {
		_, err := b.WriteString("xxxxxxxxxxxxxxxxx")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"Message":"raw"}` || string(again) != "xxxxxxxxxxxxxxxxx" {
		t.Fatalf("encoded output was overwritten: %q", out)
	}
}

func TestEncodeError(t *testing.T) {
	boom := errors.New("boom")
	out, err := Encode(func(*bytes.Buffer) error { return boom })
	if !errors.Is(err, boom) || out != nil {
		t.Fatalf("expected error %v and no output, got %v %q", boom, err, out)
	}
}

func TestConcurrentEncode(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := Encode(func(b *bytes.Buffer) error {
				_, err := b.WriteString("concurrent test data")
				return err
			})
			if err != nil || string(out) != "concurrent test data" {
				t.Errorf("unexpected result %q %v", out, err)
			}
		}()
	}
	wg.Wait()
}
