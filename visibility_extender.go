package sqsconsumer

import (
	"context"
	"time"
)

// extensionPercent is the share of the current visibility timeout to wait
// before the next extension. The remaining margin absorbs API latency.
const extensionPercent = 45

// startVisibilityExtender keeps pushing the visibility timeout of msg forward
// until the returned stop function is called or the message reaches a
// terminal state. Each round doubles the timeout, up to ceiling seconds.
//
// Extension is best-effort: failures are logged and reported as error events
// but never fail the message. Stop blocks until the extender has exited, so
// no extension call can land after it returns.
func (c *Consumer) startVisibilityExtender(ctx context.Context, msg *Message, ceiling int32) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		c.extendVisibility(ctx, msg, ceiling)
	}()

	return func() {
		cancel()
		<-exited
	}
}

func (c *Consumer) extendVisibility(ctx context.Context, msg *Message, ceiling int32) {
	logger := c.logger.WithField("message_id", msg.ID)

	timer := time.NewTimer(extensionDelay(msg.visibilityTimeout.Load()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if msg.State().Terminal() {
			return
		}

		seconds := msg.doubleVisibilityTimeout(ceiling)

		callCtx, cancel := context.WithTimeout(ctx, sqsCallTimeout)
		err := c.changeMessageVisibility(callCtx, msg, seconds)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			logger.Errorf("Failed to extend SQS message visibility: %v", err)
			c.events.emit(Event{Type: EventError, Err: err})
		}

		timer.Reset(extensionDelay(seconds))
	}
}

func extensionDelay(seconds int32) time.Duration {
	return time.Duration(seconds) * time.Second * extensionPercent / 100
}
