package sqsconsumer

import (
	"context"
	"time"
)

// executeHandler runs the handler under the given budget. A zero budget calls
// the handler directly.
//
// When the budget expires first the message is marked failed and the
// handler's context is cancelled, but the handler goroutine is not waited
// for; whatever it returns later is discarded. Handlers that ignore their
// context keep running until they return on their own.
func (c *Consumer) executeHandler(ctx context.Context, msg *Message, budget time.Duration) error {
	if budget <= 0 {
		return c.callHandler(ctx, msg)
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)

	go func() {
		result <- c.callHandler(handlerCtx, msg)
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-timer.C:
		msg.finish(StateFailed)
		return newTimeoutError(budget)
	}
}
