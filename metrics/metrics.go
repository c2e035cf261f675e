// Package metrics exposes consumer activity as Prometheus metrics.
//
// A [Collector] is fed by subscribing [Collector.Observe] to a consumer:
//
//	collector := metrics.New("sqs_consumer")
//	if err := collector.Register(prometheus.DefaultRegisterer); err != nil {
//		return err
//	}
//	unsubscribe := consumer.Subscribe(collector.Observe)
//	defer unsubscribe()
package metrics

import (
	"errors"
	"time"

	sqsconsumer "github.com/BBC/sqs-consumer"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector turns consumer events into counters, a gauge and a histogram.
type Collector struct {
	MessagesReceived      prometheus.Counter
	MessagesProcessed     prometheus.Counter
	Errors                *prometheus.CounterVec
	EmptyReceives         prometheus.Counter
	BatchesProcessed      prometheus.Counter
	Running               prometheus.Gauge
	MessageProcessingTime *prometheus.HistogramVec
}

// New creates a collector whose metric names are prefixed with namespace.
func New(namespace string) *Collector {
	return &Collector{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total messages received from SQS",
		}),
		MessagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Total messages handled successfully and deleted from SQS",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total consumer errors by kind",
		}, []string{"kind"}),
		EmptyReceives: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_receives_total",
			Help:      "Total receive calls that returned no messages",
		}),
		BatchesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_processed_total",
			Help:      "Total non-empty batches fully settled",
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the consumer poll loop is running",
		}),
		MessageProcessingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_processing_seconds",
			Help:      "Histogram of message processing duration, from receive to settlement",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
}

// Register registers every metric with reg. Metrics that are already
// registered are not treated as an error.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{
		c.MessagesReceived,
		c.MessagesProcessed,
		c.Errors,
		c.EmptyReceives,
		c.BatchesProcessed,
		c.Running,
		c.MessageProcessingTime,
	} {
		if err := reg.Register(m); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}

			return err
		}
	}

	return nil
}

// Observe records a single consumer event. It has the [sqsconsumer.Listener]
// signature.
func (c *Collector) Observe(e sqsconsumer.Event) {
	switch e.Type {
	case sqsconsumer.EventStarted:
		c.Running.Set(1)
	case sqsconsumer.EventStopped:
		c.Running.Set(0)
	case sqsconsumer.EventEmpty:
		c.EmptyReceives.Inc()
	case sqsconsumer.EventResponseProcessed:
		c.BatchesProcessed.Inc()
	case sqsconsumer.EventMessageReceived:
		c.MessagesReceived.Inc()
	case sqsconsumer.EventMessageProcessed:
		c.MessagesProcessed.Inc()
		c.observeDuration(e, "success")
	case sqsconsumer.EventTimeoutError:
		c.Errors.WithLabelValues(sqsconsumer.KindTimeout.String()).Inc()
		c.observeDuration(e, "timeout")
	case sqsconsumer.EventProcessingError:
		c.Errors.WithLabelValues(sqsconsumer.KindProcessing.String()).Inc()
		c.observeDuration(e, "failure")
	case sqsconsumer.EventError:
		kind := sqsconsumer.KindTransport.String()
		if sqsconsumer.IsAuthError(e.Err) {
			kind = "auth"
		}

		c.Errors.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) observeDuration(e sqsconsumer.Event, outcome string) {
	if e.Message == nil {
		return
	}

	c.MessageProcessingTime.WithLabelValues(outcome).Observe(time.Since(e.Message.ReceivedAt()).Seconds())
}
