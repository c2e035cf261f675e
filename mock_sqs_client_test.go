//nolint:testpackage // Mock must be in the sqsconsumer package to access unexported types
package sqsconsumer

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/slackmgr/types"
	"github.com/stretchr/testify/require"
)

// mockSQSClient is a mock implementation of the SQSClient interface for testing.
type mockSQSClient struct {
	receiveMessageFunc          func(ctx context.Context, input *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	deleteMessageFunc           func(ctx context.Context, input *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	changeMessageVisibilityFunc func(ctx context.Context, input *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	getQueueAttributesFunc      func(ctx context.Context, input *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)

	mu                 sync.Mutex
	deletedHandles     []string
	visibilityChanges  []visibilityChange
	receiveInputs      []*sqs.ReceiveMessageInput
	queueAttributeGets int
}

type visibilityChange struct {
	receiptHandle string
	seconds       int32
}

func (m *mockSQSClient) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	m.mu.Lock()
	m.receiveInputs = append(m.receiveInputs, params)
	m.mu.Unlock()

	if m.receiveMessageFunc != nil {
		return m.receiveMessageFunc(ctx, params, optFns...)
	}
	return &sqs.ReceiveMessageOutput{}, nil
}

func (m *mockSQSClient) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if m.deleteMessageFunc != nil {
		out, err := m.deleteMessageFunc(ctx, params, optFns...)
		if err != nil {
			return nil, err
		}
		m.recordDelete(params)
		return out, nil
	}
	m.recordDelete(params)
	return &sqs.DeleteMessageOutput{}, nil
}

func (m *mockSQSClient) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	m.mu.Lock()
	m.visibilityChanges = append(m.visibilityChanges, visibilityChange{
		receiptHandle: aws.ToString(params.ReceiptHandle),
		seconds:       params.VisibilityTimeout,
	})
	m.mu.Unlock()

	if m.changeMessageVisibilityFunc != nil {
		return m.changeMessageVisibilityFunc(ctx, params, optFns...)
	}
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func (m *mockSQSClient) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	m.mu.Lock()
	m.queueAttributeGets++
	m.mu.Unlock()

	if m.getQueueAttributesFunc != nil {
		return m.getQueueAttributesFunc(ctx, params, optFns...)
	}
	return &sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{"VisibilityTimeout": "30"},
	}, nil
}

func (m *mockSQSClient) recordDelete(params *sqs.DeleteMessageInput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedHandles = append(m.deletedHandles, aws.ToString(params.ReceiptHandle))
}

func (m *mockSQSClient) deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.deletedHandles)
}

func (m *mockSQSClient) visibility() []visibilityChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.visibilityChanges)
}

func (m *mockSQSClient) receiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receiveInputs)
}

// mockLogger is a no-op logger for testing.
type mockLogger struct{}

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithField(_ string, _ any) types.Logger { return m }

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithFields(_ map[string]any) types.Logger { return m }
func (m *mockLogger) Debug(_ string)                           {}
func (m *mockLogger) Debugf(_ string, _ ...any)                {}
func (m *mockLogger) Info(_ string)                            {}
func (m *mockLogger) Infof(_ string, _ ...any)                 {}
func (m *mockLogger) Warn(_ string)                            {}
func (m *mockLogger) Warnf(_ string, _ ...any)                 {}
func (m *mockLogger) Error(_ string)                           {}
func (m *mockLogger) Errorf(_ string, _ ...any)                {}
func (m *mockLogger) Fatal(_ string)                           {}
func (m *mockLogger) Fatalf(_ string, _ ...any)                {}

//nolint:ireturn // Returns interface for convenience in tests
func newMockLogger() types.Logger {
	return &mockLogger{}
}

// recordingLogger keeps every log line with its level.
type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

type logLine struct {
	level string
	msg   string
}

func (r *recordingLogger) add(level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, logLine{level: level, msg: msg})
}

func (r *recordingLogger) at(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.lines {
		if l.level == level {
			out = append(out, l.msg)
		}
	}
	return out
}

//nolint:ireturn // Must return interface to implement types.Logger
func (r *recordingLogger) WithField(_ string, _ any) types.Logger { return r }

//nolint:ireturn // Must return interface to implement types.Logger
func (r *recordingLogger) WithFields(_ map[string]any) types.Logger { return r }
func (r *recordingLogger) Debug(msg string)                         { r.add("debug", msg) }
func (r *recordingLogger) Debugf(format string, args ...any)        { r.add("debug", fmt.Sprintf(format, args...)) }
func (r *recordingLogger) Info(msg string)                          { r.add("info", msg) }
func (r *recordingLogger) Infof(format string, args ...any)         { r.add("info", fmt.Sprintf(format, args...)) }
func (r *recordingLogger) Error(msg string)                         { r.add("error", msg) }
func (r *recordingLogger) Errorf(format string, args ...any)        { r.add("error", fmt.Sprintf(format, args...)) }

var _ types.Logger = (*recordingLogger)(nil)

// eventRecorder collects consumer events in emission order.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *eventRecorder) ofType(t EventType) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) count(t EventType) int {
	return len(r.ofType(t))
}

func sqsMessage(id string) sqstypes.Message {
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("receipt-" + id),
		Body:          aws.String("body-" + id),
	}
}

func okHandler() Handler {
	return HandlerFunc(func(context.Context, *Message) error { return nil })
}

// newTestConsumer builds a consumer around client with a recorder subscribed
// to all events.
func newTestConsumer(t *testing.T, client *mockSQSClient, handler Handler, opts ...Option) (*Consumer, *eventRecorder) {
	t.Helper()

	opts = append([]Option{WithSQSClient(client)}, opts...)

	c, err := New(nil, "https://sqs.us-east-1.amazonaws.com/123456789/test-queue", handler, newMockLogger(), opts...)
	require.NoError(t, err)

	rec := &eventRecorder{}
	c.Subscribe(rec.record)

	return c, rec
}

// pollOnce runs a single poll cycle with the consumer's current options.
func pollOnce(t *testing.T, c *Consumer) time.Duration {
	t.Helper()

	c.mu.Lock()
	opts, sem := c.opts.clone(), c.sem
	c.mu.Unlock()

	return c.poll(t.Context(), opts, sem)
}
