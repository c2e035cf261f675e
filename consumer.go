package sqsconsumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/slackmgr/types"
	"golang.org/x/sync/semaphore"
)

// defaultVisibilityTimeoutSeconds is the SQS default, used until the queue
// attribute has been read successfully.
const defaultVisibilityTimeoutSeconds = 30

// sqsCallTimeout bounds delete and visibility calls made on behalf of a message.
const sqsCallTimeout = 5 * time.Second

// Handler processes a single message. Returning nil deletes the message from
// the queue; returning an error leaves it to be redelivered.
type Handler interface {
	HandleMessage(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts an ordinary function to the [Handler] interface.
type HandlerFunc func(ctx context.Context, msg *Message) error

// HandleMessage calls f(ctx, msg).
func (f HandlerFunc) HandleMessage(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// Consumer long-polls an SQS queue and dispatches every received message to a
// [Handler]. Messages are deleted when the handler succeeds. Failures are
// reported as events and never stop the poll loop; only [Consumer.Stop] or
// cancelling the context passed to [Consumer.Start] does.
//
// All methods are safe for concurrent use.
type Consumer struct {
	client   SQSClient
	queueURL string
	handler  Handler
	logger   types.Logger
	events   *eventSink

	mu      sync.Mutex
	opts    *Options
	sem     *semaphore.Weighted // nil when there is no concurrency limit
	stopped bool
	looping bool
	done    chan struct{}
	wakeCh  chan struct{}

	// queueVisibilityTimeout caches the queue's VisibilityTimeout attribute, in seconds.
	queueVisibilityTimeout atomic.Int32
}

// New creates a Consumer for the queue at queueURL.
//
// awsCfg is used to build the SQS client and may be nil when a client is
// supplied with [WithSQSClient]. The logger is enriched with "plugin" and
// "queue_url" fields.
//
// New validates all options and returns an error before any polling occurs
// if one is out of range. Call [Consumer.Start] to begin polling.
func New(awsCfg *aws.Config, queueURL string, handler Handler, logger types.Logger, opts ...Option) (*Consumer, error) {
	if queueURL == "" {
		return nil, errors.New("queue URL cannot be empty")
	}

	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("invalid consumer options: %w", err)
	}

	client := options.sqsClient

	if client == nil {
		if awsCfg == nil {
			return nil, errors.New("an AWS config is required when no SQS client is supplied")
		}

		client = sqs.NewFromConfig(*awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, options.sqsAPIMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, options.sqsAPIMaxRetryAttempts)
		})
	}

	logger = logger.
		WithField("plugin", "sqs-consumer").
		WithField("queue_url", queueURL)

	done := make(chan struct{})
	close(done)

	c := &Consumer{
		client:   client,
		queueURL: queueURL,
		handler:  handler,
		logger:   logger,
		events:   newEventSink(logger),
		opts:     options,
		sem:      newSemaphore(options.concurrencyLimit),
		stopped:  true,
		done:     done,
		wakeCh:   make(chan struct{}, 1),
	}

	c.queueVisibilityTimeout.Store(defaultVisibilityTimeoutSeconds)

	return c, nil
}

func newSemaphore(limit int) *semaphore.Weighted {
	if limit <= 0 {
		return nil
	}

	return semaphore.NewWeighted(int64(limit))
}

// QueueURL returns the URL of the queue being consumed.
func (c *Consumer) QueueURL() string {
	return c.queueURL
}

// Subscribe registers l for all consumer events and returns a function that
// removes it again.
func (c *Consumer) Subscribe(l Listener) (unsubscribe func()) {
	return c.events.subscribe(l)
}

// Start begins polling in a background goroutine. Calling Start on a running
// consumer has no effect. Cancelling ctx stops the consumer at the next cycle
// boundary, like [Consumer.Stop].
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	c.stopped = false
	c.drainWake()

	if c.looping {
		c.mu.Unlock()
		return
	}

	c.looping = true
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.logger.Info("SQS consumer started")
	c.events.emit(Event{Type: EventStarted})

	go c.run(ctx, done)
}

// Stop asks the consumer to stop. A poll cycle already in progress runs to
// completion, including its handlers and deletes; an [EventStopped] event is
// emitted when the loop observes the request. Use [Consumer.Done] to wait.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true

	// Only a running loop can be waiting in pause.
	if !c.looping {
		return
	}

	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// drainWake discards a pending stop signal. Callers must hold c.mu.
func (c *Consumer) drainWake() {
	select {
	case <-c.wakeCh:
	default:
	}
}

// IsRunning reports whether the consumer has been started and not stopped.
func (c *Consumer) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.stopped
}

// Done returns a channel that is closed once the poll loop has exited.
func (c *Consumer) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.done
}

// SetBatchSize changes the number of messages requested per poll.
// It takes effect on the next poll cycle.
func (c *Consumer) SetBatchSize(n int32) error {
	if err := validateBatchSize(n); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts.batchSize = n

	return nil
}

// SetConcurrencyLimit changes the maximum number of concurrently running
// handlers. Zero removes the limit. Handlers already running keep their slot
// on the previous limit; the new limit applies from the next poll cycle.
func (c *Consumer) SetConcurrencyLimit(n int) error {
	if err := validateConcurrencyLimit(n); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts.concurrencyLimit = n
	c.sem = newSemaphore(n)

	return nil
}

// SetPollingWaitTime changes the pause between poll cycles.
// It takes effect on the next poll cycle.
func (c *Consumer) SetPollingWaitTime(d time.Duration) error {
	if err := validatePollingWaitTime(d); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts.pollingWaitTime = d

	return nil
}

func (c *Consumer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		opts, sem, ok := c.beginCycle(ctx)
		if !ok {
			c.logger.Info("SQS consumer stopped")
			c.events.emit(Event{Type: EventStopped})

			return
		}

		c.pause(ctx, c.poll(ctx, opts, sem))
	}
}

// beginCycle checks the run state and returns a snapshot of the options for
// one poll cycle. It returns false, and marks the loop as exited, if the
// consumer has been stopped.
func (c *Consumer) beginCycle(ctx context.Context) (*Options, *semaphore.Weighted, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		c.stopped = true
	}

	if c.stopped {
		c.looping = false
		c.drainWake()

		return nil, nil, false
	}

	return c.opts.clone(), c.sem, true
}

// poll runs one receive/process cycle and returns how long to wait before the
// next one.
func (c *Consumer) poll(ctx context.Context, opts *Options, sem *semaphore.Weighted) time.Duration {
	c.logger.WithField("wait_time", opts.waitTime).Debug("Polling SQS queue")

	messages, err := c.receiveMessages(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}

		c.logger.Errorf("Failed to receive SQS messages: %v", err)
		c.events.emit(Event{Type: EventError, Err: err})

		if IsAuthError(err) {
			c.logger.WithField("timeout", opts.authenticationErrorTimeout).Info("SQS authentication error, pausing before the next poll")
			return opts.authenticationErrorTimeout
		}

		return opts.pollingWaitTime
	}

	if len(messages) == 0 {
		c.logger.Debug("No SQS messages received")
		c.events.emit(Event{Type: EventEmpty})

		return opts.pollingWaitTime
	}

	if opts.extendVisibilityTimeout {
		c.refreshQueueVisibilityTimeout(ctx)
	}

	c.processBatch(ctx, messages, opts, sem)
	c.events.emit(Event{Type: EventResponseProcessed})

	return opts.pollingWaitTime
}

func (c *Consumer) refreshQueueVisibilityTimeout(ctx context.Context) {
	seconds, err := c.fetchQueueVisibilityTimeout(ctx)
	if err != nil {
		c.logger.Errorf("Failed to read SQS queue visibility timeout: %v", err)
		c.events.emit(Event{Type: EventError, Err: err})

		return
	}

	c.queueVisibilityTimeout.Store(seconds)
}

// initialVisibilityTimeout returns the visibility timeout in effect for a
// freshly received message.
func (c *Consumer) initialVisibilityTimeout(opts *Options) int32 {
	if opts.visibilityTimeoutSeconds > 0 {
		return opts.visibilityTimeoutSeconds
	}

	return c.queueVisibilityTimeout.Load()
}

// processBatch dispatches every message and returns once all of them have
// settled.
func (c *Consumer) processBatch(ctx context.Context, messages []sqstypes.Message, opts *Options, sem *semaphore.Weighted) {
	c.logger.WithField("count", len(messages)).Debug("SQS messages received")

	receivedAt := time.Now()
	visibilityTimeout := c.initialVisibilityTimeout(opts)

	var wg sync.WaitGroup

	for _, m := range messages {
		msg := newMessage(m, visibilityTimeout, receivedAt)

		if sem == nil {
			wg.Go(func() {
				c.processMessage(ctx, msg, opts)
			})

			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// The message stays in the queue and becomes visible again once its timeout expires.
			c.logger.WithField("message_id", msg.ID).Error("SQS message not dispatched, consumer context cancelled")
			c.events.emit(Event{Type: EventError, Err: fmt.Errorf("message not dispatched: %w", err), Message: msg})

			continue
		}

		wg.Go(func() {
			defer sem.Release(1)
			c.processMessage(ctx, msg, opts)
		})
	}

	wg.Wait()
}

// pause waits d before the next cycle. Stop and context cancellation cut the
// wait short.
func (c *Consumer) pause(ctx context.Context, d time.Duration) {
	if d <= 0 || !c.IsRunning() {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case <-c.wakeCh:
			// Restarted before the wake was seen; the pause still applies.
			if !c.IsRunning() {
				return
			}
		}
	}
}
