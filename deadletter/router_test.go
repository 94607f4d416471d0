// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package deadletter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absmach/courier/deadletter"
	"github.com/absmach/courier/publisher"
	"github.com/absmach/courier/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeError struct{ msg string }

func (e *decodeError) Error() string { return e.msg }

func newRouter(t *testing.T, ch *testutil.Channel) *deadletter.Router {
	t.Helper()
	ep, err := publisher.NewEndpoint(ch, publisher.DeadConfig("orders-dead"))
	require.NoError(t, err)
	r, err := deadletter.NewRouter("orders", ep, nil)
	require.NoError(t, err)
	return r
}

func TestNewRouter(t *testing.T) {
	_, err := deadletter.NewRouter("orders", nil, nil)
	assert.ErrorIs(t, err, deadletter.ErrNilEmitter)
}

func TestRoute(t *testing.T) {
	ch := testutil.NewChannel()
	r := newRouter(t, ch)

	before := time.Now().UTC()
	err := r.Route(context.Background(), &decodeError{msg: "unexpected end of JSON input"}, "main.Order", []byte(`{"id":`))
	require.NoError(t, err)

	published := ch.PublishedTo("", "orders-dead")
	require.Len(t, published, 1)
	assert.True(t, published[0].Msg.Persistent)

	rec, err := deadletter.Decode(published[0].Msg.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "*deadletter_test.decodeError", rec.ExceptionType)
	assert.Equal(t, "unexpected end of JSON input", rec.Exception)
	assert.Equal(t, "main.Order", rec.MessageType)
	assert.Equal(t, `{"id":`, rec.Message)
	assert.Equal(t, "orders", rec.Queue)
	assert.False(t, rec.FailedAt.Before(before.Truncate(time.Second)))
}

func TestRouteWireKeys(t *testing.T) {
	ch := testutil.NewChannel()
	r := newRouter(t, ch)

	require.NoError(t, r.Route(context.Background(), errors.New("boom"), "main.Order", []byte("raw")))

	body := string(ch.Published()[0].Msg.Body)
	for _, key := range []string{`"Id"`, `"ExceptionType"`, `"Exception"`, `"MessageType"`, `"Message"`, `"Queue"`, `"FailedAt"`} {
		assert.Contains(t, body, key)
	}
}

func TestRoutePublishFailure(t *testing.T) {
	boom := errors.New("channel closed")
	ch := testutil.NewChannel()
	calls := 0
	ch.PublishErr = func(string, string) error {
		calls++
		return boom
	}
	r := newRouter(t, ch)

	err := r.Route(context.Background(), errors.New("handler failed"), "main.Order", []byte("raw"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := deadletter.Decode([]byte("not json"))
	assert.Error(t, err)
}
