package sqsconsumer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// processMessage runs the handler for one message and settles it: delete on
// success, classify and report on failure. Errors never propagate to the
// caller.
func (c *Consumer) processMessage(ctx context.Context, msg *Message, opts *Options) {
	logger := c.logger.WithField("message_id", msg.ID)

	c.events.emit(Event{Type: EventMessageReceived, Message: msg})
	msg.startHandling()

	stopExtender := func() {}
	if opts.extendVisibilityTimeout {
		stopExtender = c.startVisibilityExtender(ctx, msg, opts.maxVisibilityTimeoutSeconds)
	}

	err := c.executeHandler(ctx, msg, opts.handleMessageTimeout)

	// No extension may land after this point, or it could undo the delete or
	// visibility release below.
	stopExtender()

	if err == nil {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sqsCallTimeout)
		err = c.deleteMessage(callCtx, msg)
		cancel()
	}

	if err == nil {
		msg.finish(StateSucceeded)
		logger.Debug("SQS message processed")
		c.events.emit(Event{Type: EventMessageProcessed, Message: msg})

		return
	}

	msg.finish(StateFailed)
	c.handleFailure(ctx, msg, err, opts)
}

func (c *Consumer) handleFailure(ctx context.Context, msg *Message, err error, opts *Options) {
	logger := c.logger.WithField("message_id", msg.ID)

	var cerr *Error
	if !errors.As(err, &cerr) {
		cerr = newProcessingError(err)
	}

	switch cerr.Kind {
	case KindTransport:
		logger.Errorf("SQS error while processing message: %v", cerr)
		c.events.emit(Event{Type: EventError, Err: cerr, Message: msg})
	case KindTimeout:
		logger.Errorf("SQS message handler timed out: %v", cerr)
		c.events.emit(Event{Type: EventTimeoutError, Err: cerr, Message: msg})
	default:
		logger.Errorf("SQS message handler failed: %v", cerr)
		c.events.emit(Event{Type: EventProcessingError, Err: cerr, Message: msg})
	}

	if !opts.terminateVisibilityTimeout {
		return
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sqsCallTimeout)
	defer cancel()

	if err := c.changeMessageVisibility(callCtx, msg, 0); err != nil {
		logger.Errorf("Failed to release SQS message visibility: %v", err)
		c.events.emit(Event{Type: EventError, Err: err, Message: msg})
	}
}

// callHandler invokes the handler, converting errors and panics into
// processing errors.
func (c *Consumer) callHandler(ctx context.Context, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("message_id", msg.ID).Errorf("SQS message handler panic: %v\nStack: %s", r, debug.Stack())
			err = newProcessingError(fmt.Errorf("handler panic: %v", r))
		}
	}()

	if herr := c.handler.HandleMessage(ctx, msg); herr != nil {
		return newProcessingError(herr)
	}

	return nil
}
