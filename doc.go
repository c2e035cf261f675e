// Package sqsconsumer provides a long-polling AWS SQS consumer. It receives
// batches of messages, hands each one to a caller-supplied [Handler], deletes
// messages whose handler succeeds, and manages their visibility timeout while
// they are in flight.
//
// # Consumer
//
// Create a consumer with [New] and start it with [Consumer.Start]:
//
//	handler := sqsconsumer.HandlerFunc(func(ctx context.Context, msg *sqsconsumer.Message) error {
//	    return process(ctx, msg.Body)
//	})
//
//	consumer, err := sqsconsumer.New(&awsCfg, queueURL, handler, logger,
//	    sqsconsumer.WithBatchSize(10),
//	    sqsconsumer.WithHandleMessageTimeout(30*time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//
//	consumer.Start(ctx)
//	defer func() {
//	    consumer.Stop()
//	    <-consumer.Done()
//	}()
//
// Each poll cycle receives up to the configured batch size, runs the handlers
// (bounded by [WithConcurrencyLimit] if set), waits for every message in the
// batch to settle, and then polls again after [WithPollingWaitTime]. A
// receive that fails with an authentication-classified error pauses polling
// for [WithAuthenticationErrorTimeout] instead.
//
// # Events
//
// The consumer never stops on error. Failures and lifecycle changes are
// reported through [Consumer.Subscribe]; see [EventType] for the full list.
// Failures carry an [*Error] whose [ErrorKind] tells transport failures,
// handler timeouts and handler errors apart.
//
// # Visibility
//
// With [WithExtendVisibilityTimeout] a background goroutine doubles the
// visibility timeout of every in-flight message shortly before it would
// expire, up to [WithMaxVisibilityTimeout]. With
// [WithTerminateVisibilityTimeout] a failed message has its visibility reset
// to zero so it is redelivered immediately.
//
// Delivery is at-least-once. Handlers should be idempotent.
package sqsconsumer
