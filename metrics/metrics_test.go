package metrics_test

import (
	"errors"
	"testing"

	sqsconsumer "github.com/BBC/sqs-consumer"
	"github.com/BBC/sqs-consumer/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Observe(t *testing.T) {
	t.Parallel()

	c := metrics.New("test")
	msg := &sqsconsumer.Message{ID: "m1"}

	for _, e := range []sqsconsumer.Event{
		{Type: sqsconsumer.EventStarted},
		{Type: sqsconsumer.EventEmpty},
		{Type: sqsconsumer.EventEmpty},
		{Type: sqsconsumer.EventMessageReceived, Message: msg},
		{Type: sqsconsumer.EventMessageReceived, Message: msg},
		{Type: sqsconsumer.EventMessageProcessed, Message: msg},
		{Type: sqsconsumer.EventProcessingError, Message: msg, Err: errors.New("boom")},
		{Type: sqsconsumer.EventResponseProcessed},
		{Type: sqsconsumer.EventError, Err: &sqsconsumer.Error{Kind: sqsconsumer.KindTransport, Op: "ReceiveMessage"}},
	} {
		c.Observe(e)
	}

	assert.InDelta(t, 1, testutil.ToFloat64(c.Running), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.EmptyReceives), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.MessagesReceived), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.MessagesProcessed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.BatchesProcessed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.Errors.WithLabelValues("processing")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.Errors.WithLabelValues("transport")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(c.MessageProcessingTime))

	c.Observe(sqsconsumer.Event{Type: sqsconsumer.EventStopped})
	assert.InDelta(t, 0, testutil.ToFloat64(c.Running), 0)
}

func TestCollector_TimeoutWithoutMessage(t *testing.T) {
	t.Parallel()

	c := metrics.New("test")
	c.Observe(sqsconsumer.Event{Type: sqsconsumer.EventTimeoutError, Err: errors.New("late")})

	assert.InDelta(t, 1, testutil.ToFloat64(c.Errors.WithLabelValues("timeout")), 0)
	assert.Equal(t, 0, testutil.CollectAndCount(c.MessageProcessingTime))
}

func TestCollector_Register(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.New("test")

	require.NoError(t, c.Register(reg))
	require.NoError(t, c.Register(reg), "registering twice is tolerated")

	c.Observe(sqsconsumer.Event{Type: sqsconsumer.EventMessageReceived})

	count, err := testutil.GatherAndCount(reg, "test_messages_received_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
