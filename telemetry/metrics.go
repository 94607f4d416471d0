// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/absmach/courier"

// Dead letter reasons.
const (
	ReasonDecode    = "decode"
	ReasonExhausted = "exhausted"
)

// Metrics holds the OpenTelemetry instruments. A nil *Metrics records nothing.
type Metrics struct {
	meter metric.Meter

	// Counters
	messagesReceived metric.Int64Counter
	messagesHandled  metric.Int64Counter
	messagesRetried  metric.Int64Counter
	messagesDead     metric.Int64Counter
	messagesRequeued metric.Int64Counter
	publishTotal     metric.Int64Counter
	publishFailed    metric.Int64Counter

	// Histograms
	batchSize       metric.Int64Histogram
	handleDuration  metric.Float64Histogram
	publishDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on provider, or on the global meter
// provider when provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m := &Metrics{
		meter: provider.Meter(instrumentationName),
	}

	var err error

	m.messagesReceived, err = m.meter.Int64Counter(
		"courier.messages.received",
		metric.WithDescription("Deliveries received from the broker"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesReceived counter: %w", err)
	}

	m.messagesHandled, err = m.meter.Int64Counter(
		"courier.messages.handled",
		metric.WithDescription("Messages handled successfully"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesHandled counter: %w", err)
	}

	m.messagesRetried, err = m.meter.Int64Counter(
		"courier.messages.retried",
		metric.WithDescription("Messages re-published to the retry exchange"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesRetried counter: %w", err)
	}

	m.messagesDead, err = m.meter.Int64Counter(
		"courier.messages.dead",
		metric.WithDescription("Messages routed to the dead queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesDead counter: %w", err)
	}

	m.messagesRequeued, err = m.meter.Int64Counter(
		"courier.messages.requeued",
		metric.WithDescription("Messages returned to the broker after a failed re-publish"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messagesRequeued counter: %w", err)
	}

	m.publishTotal, err = m.meter.Int64Counter(
		"courier.publish.total",
		metric.WithDescription("Messages published"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publishTotal counter: %w", err)
	}

	m.publishFailed, err = m.meter.Int64Counter(
		"courier.publish.failed",
		metric.WithDescription("Failed publish attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publishFailed counter: %w", err)
	}

	m.batchSize, err = m.meter.Int64Histogram(
		"courier.batch.size",
		metric.WithDescription("Size of discharged batches"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batchSize histogram: %w", err)
	}

	m.handleDuration, err = m.meter.Float64Histogram(
		"courier.handle.duration.ms",
		metric.WithDescription("Handler duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create handleDuration histogram: %w", err)
	}

	m.publishDuration, err = m.meter.Float64Histogram(
		"courier.publish.duration.ms",
		metric.WithDescription("Publish duration in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publishDuration histogram: %w", err)
	}

	return m, nil
}

// RecordReceived records a delivery received by a consumer.
func (m *Metrics) RecordReceived(consumer string) {
	if m == nil {
		return
	}
	m.messagesReceived.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("consumer", consumer),
	))
}

// RecordHandled records a batch handled by a consumer.
func (m *Metrics) RecordHandled(consumer string, count int, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	ctx := context.Background()
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("consumer", consumer),
		attribute.String("outcome", outcome),
	)
	if !failed {
		m.messagesHandled.Add(ctx, int64(count), metric.WithAttributes(attribute.String("consumer", consumer)))
	}
	m.batchSize.Record(ctx, int64(count), attrs)
	m.handleDuration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
}

// RecordRetried records a retry re-publish.
func (m *Metrics) RecordRetried(consumer string, delay uint64) {
	if m == nil {
		return
	}
	m.messagesRetried.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("consumer", consumer),
		attribute.Int64("delay_ms", int64(delay)),
	))
}

// RecordDead records a dead-lettered message.
func (m *Metrics) RecordDead(consumer, reason string) {
	if m == nil {
		return
	}
	m.messagesDead.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("consumer", consumer),
		attribute.String("reason", reason),
	))
}

// RecordRequeued records messages handed back to the broker.
func (m *Metrics) RecordRequeued(consumer string, count int) {
	if m == nil {
		return
	}
	m.messagesRequeued.Add(context.Background(), int64(count), metric.WithAttributes(
		attribute.String("consumer", consumer),
	))
}

// RecordPublish records a publish attempt to destination.
func (m *Metrics) RecordPublish(destination string, d time.Duration, err error) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("destination", destination))
	if err != nil {
		m.publishFailed.Add(ctx, 1, attrs)
		return
	}
	m.publishTotal.Add(ctx, 1, attrs)
	m.publishDuration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
}
