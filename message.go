package sqsconsumer

import (
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// MessageState is the processing state of a received message.
type MessageState int32

const (
	StateReceived MessageState = iota
	StateHandling
	StateSucceeded
	StateFailed
)

func (s MessageState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateHandling:
		return "handling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s MessageState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Message is a single SQS message handed to a [Handler].
//
// Handlers may read any field but must not retain the message after they
// return. The receipt handle is only exposed through [Message.ReceiptHandle].
type Message struct {
	ID                string
	Body              string
	Attributes        map[string]string
	MessageAttributes map[string]sqstypes.MessageAttributeValue

	receiptHandle     string
	receivedAt        time.Time
	state             atomic.Int32
	visibilityTimeout atomic.Int32 // seconds
}

func newMessage(m sqstypes.Message, visibilityTimeoutSeconds int32, receivedAt time.Time) *Message {
	msg := &Message{
		ID:                aws.ToString(m.MessageId),
		Body:              aws.ToString(m.Body),
		Attributes:        m.Attributes,
		MessageAttributes: m.MessageAttributes,
		receiptHandle:     aws.ToString(m.ReceiptHandle),
		receivedAt:        receivedAt,
	}

	msg.visibilityTimeout.Store(visibilityTimeoutSeconds)

	return msg
}

// ReceiptHandle returns the handle SQS assigned to this delivery.
func (m *Message) ReceiptHandle() string {
	return m.receiptHandle
}

// ReceivedAt returns the time the message was returned by ReceiveMessage.
func (m *Message) ReceivedAt() time.Time {
	return m.receivedAt
}

// VisibilityTimeout returns the visibility timeout most recently requested for
// the message.
func (m *Message) VisibilityTimeout() time.Duration {
	return time.Duration(m.visibilityTimeout.Load()) * time.Second
}

// State returns the current processing state.
func (m *Message) State() MessageState {
	return MessageState(m.state.Load())
}

func (m *Message) startHandling() {
	m.state.CompareAndSwap(int32(StateReceived), int32(StateHandling))
}

// finish moves the message into a terminal state. It returns false if the
// message had already reached one, in which case the state is left unchanged.
func (m *Message) finish(s MessageState) bool {
	for {
		cur := MessageState(m.state.Load())
		if cur.Terminal() {
			return false
		}

		if m.state.CompareAndSwap(int32(cur), int32(s)) {
			return true
		}
	}
}

// doubleVisibilityTimeout doubles the tracked visibility timeout, capped at
// ceiling, and returns the new value.
func (m *Message) doubleVisibilityTimeout(ceiling int32) int32 {
	next := min(max(m.visibilityTimeout.Load(), 1)*2, ceiling)
	m.visibilityTimeout.Store(next)

	return next
}
