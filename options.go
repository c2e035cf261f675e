package sqsconsumer

import (
	"errors"
	"slices"
	"time"

	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// maxSqsVisibilityTimeoutSeconds is the largest visibility timeout SQS accepts (12 hours).
const maxSqsVisibilityTimeoutSeconds = 43200

// Option is a functional option for configuring a [Consumer].
// Options are passed to [New] and validated before New returns.
type Option func(*Options)

// Options holds the resolved configuration for a [Consumer].
// All fields are set to defaults by [New]; use With* functions to override
// individual values.
type Options struct {
	batchSize                   int32
	attributeNames              []sqstypes.QueueAttributeName
	messageAttributeNames       []string
	waitTime                    time.Duration
	visibilityTimeoutSeconds    int32
	maxVisibilityTimeoutSeconds int32
	handleMessageTimeout        time.Duration
	authenticationErrorTimeout  time.Duration
	pollingWaitTime             time.Duration
	terminateVisibilityTimeout  bool
	extendVisibilityTimeout     bool
	concurrencyLimit            int
	sqsAPIMaxRetryAttempts      int
	sqsAPIMaxRetryBackoffDelay  time.Duration
	sqsClient                   SQSClient // Optional: injected SQS client
}

func newOptions() *Options {
	return &Options{
		batchSize:                   1,
		waitTime:                    20 * time.Second,
		maxVisibilityTimeoutSeconds: maxSqsVisibilityTimeoutSeconds,
		authenticationErrorTimeout:  10 * time.Second,
		sqsAPIMaxRetryAttempts:      5,
		sqsAPIMaxRetryBackoffDelay:  10 * time.Second,
	}
}

// clone returns a copy that shares no slices with o.
func (o *Options) clone() *Options {
	c := *o
	c.attributeNames = slices.Clone(o.attributeNames)
	c.messageAttributeNames = slices.Clone(o.messageAttributeNames)

	return &c
}

func (o *Options) validate() error {
	if err := validateBatchSize(o.batchSize); err != nil {
		return err
	}

	if o.waitTime < 0 || o.waitTime > 20*time.Second {
		return errors.New("SQS receive wait time must be between 0 and 20 seconds")
	}

	if o.visibilityTimeoutSeconds < 0 || o.visibilityTimeoutSeconds > maxSqsVisibilityTimeoutSeconds {
		return errors.New("SQS message visibility timeout must be between 0 seconds and 12 hours")
	}

	if o.maxVisibilityTimeoutSeconds < 1 || o.maxVisibilityTimeoutSeconds > maxSqsVisibilityTimeoutSeconds {
		return errors.New("max SQS message visibility timeout must be between 1 second and 12 hours")
	}

	if o.handleMessageTimeout < 0 {
		return errors.New("handle message timeout cannot be negative")
	}

	if o.authenticationErrorTimeout < 0 {
		return errors.New("authentication error timeout cannot be negative")
	}

	if err := validatePollingWaitTime(o.pollingWaitTime); err != nil {
		return err
	}

	if err := validateConcurrencyLimit(o.concurrencyLimit); err != nil {
		return err
	}

	if o.sqsAPIMaxRetryAttempts < 0 || o.sqsAPIMaxRetryAttempts > 10 {
		return errors.New("max SQS API retry attempts must be between 0 and 10")
	}

	if o.sqsAPIMaxRetryBackoffDelay < 1*time.Second || o.sqsAPIMaxRetryBackoffDelay > 30*time.Second {
		return errors.New("max SQS API retry backoff delay must be between 1 and 30 seconds")
	}

	return nil
}

func validateBatchSize(n int32) error {
	if n < 1 || n > 10 {
		return errors.New("batch size must be between 1 and 10")
	}

	return nil
}

func validateConcurrencyLimit(n int) error {
	if n < 0 {
		return errors.New("concurrency limit cannot be negative")
	}

	return nil
}

func validatePollingWaitTime(d time.Duration) error {
	if d < 0 {
		return errors.New("polling wait time cannot be negative")
	}

	return nil
}

// WithBatchSize sets the maximum number of messages returned by a single
// ReceiveMessage API call. Must be between 1 and 10. Default: 1.
func WithBatchSize(n int32) Option {
	return func(o *Options) {
		o.batchSize = n
	}
}

// WithAttributeNames sets the system attributes requested for each message.
// Default: none.
func WithAttributeNames(names ...sqstypes.QueueAttributeName) Option {
	return func(o *Options) {
		o.attributeNames = names
	}
}

// WithMessageAttributeNames sets the message attributes requested for each
// message. Use "All" to request every attribute. Default: none.
func WithMessageAttributeNames(names ...string) Option {
	return func(o *Options) {
		o.messageAttributeNames = names
	}
}

// WithWaitTime sets the long-poll wait duration for each ReceiveMessage API
// call. The value is sent to SQS in whole seconds.
// Must be between 0 and 20 seconds. Default: 20 seconds.
func WithWaitTime(d time.Duration) Option {
	return func(o *Options) {
		o.waitTime = d
	}
}

// WithVisibilityTimeout sets the visibility timeout requested on receive.
// Zero leaves the queue's own setting in effect.
// Must be between 0 and 43200 seconds. Default: 0.
func WithVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.visibilityTimeoutSeconds = seconds
	}
}

// WithMaxVisibilityTimeout caps the value the visibility extender may push to
// SQS. Each extension doubles the previous timeout, so without a cap a very
// slow handler would eventually hit the SQS limit and every further
// extension would be rejected.
// Must be between 1 and 43200 seconds. Default: 43200.
func WithMaxVisibilityTimeout(seconds int32) Option {
	return func(o *Options) {
		o.maxVisibilityTimeoutSeconds = seconds
	}
}

// WithHandleMessageTimeout sets the processing budget for a single handler
// invocation. Zero disables the budget. Default: 0.
func WithHandleMessageTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.handleMessageTimeout = d
	}
}

// WithAuthenticationErrorTimeout sets how long the consumer pauses before the
// next poll after a receive failed with an authentication-classified error.
// Default: 10 seconds.
func WithAuthenticationErrorTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.authenticationErrorTimeout = d
	}
}

// WithPollingWaitTime sets the pause between the end of one poll cycle and the
// start of the next. Default: 0.
func WithPollingWaitTime(d time.Duration) Option {
	return func(o *Options) {
		o.pollingWaitTime = d
	}
}

// WithTerminateVisibilityTimeout makes the consumer reset a message's
// visibility timeout to zero after its handler fails, so that it is
// redelivered immediately. Default: false.
func WithTerminateVisibilityTimeout(enabled bool) Option {
	return func(o *Options) {
		o.terminateVisibilityTimeout = enabled
	}
}

// WithExtendVisibilityTimeout enables background visibility extension for
// messages whose handlers are still running. Default: false.
func WithExtendVisibilityTimeout(enabled bool) Option {
	return func(o *Options) {
		o.extendVisibilityTimeout = enabled
	}
}

// WithConcurrencyLimit sets the maximum number of handlers running at the same
// time across the lifetime of the consumer. Zero means no limit. Default: 0.
func WithConcurrencyLimit(n int) Option {
	return func(o *Options) {
		o.concurrencyLimit = n
	}
}

// WithSqsAPIMaxRetryAttempts sets the maximum number of retry attempts the AWS
// SDK makes for failed SQS API calls. Ignored when a client is injected with
// [WithSQSClient]. Must be between 0 and 10. Default: 5.
func WithSqsAPIMaxRetryAttempts(n int) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryAttempts = n
	}
}

// WithSqsAPIMaxRetryBackoffDelay sets the maximum backoff delay between SDK
// retry attempts. Ignored when a client is injected with [WithSQSClient].
// Must be between 1 second and 30 seconds. Default: 10 seconds.
func WithSqsAPIMaxRetryBackoffDelay(d time.Duration) Option {
	return func(o *Options) {
		o.sqsAPIMaxRetryBackoffDelay = d
	}
}

// WithSQSClient replaces the default AWS SQS client. Useful for tests and
// for clients built with custom endpoint resolution.
func WithSQSClient(client SQSClient) Option {
	return func(o *Options) {
		o.sqsClient = client
	}
}
