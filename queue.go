package sqsconsumer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSClient is the subset of the AWS SQS client used by the [Consumer].
// *sqs.Client satisfies it.
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

var _ SQSClient = (*sqs.Client)(nil)

// receiveMessages issues one long-poll ReceiveMessage call using the given
// options snapshot.
func (c *Consumer) receiveMessages(ctx context.Context, opts *Options) ([]sqstypes.Message, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:              &c.queueURL,
		MaxNumberOfMessages:   opts.batchSize,
		WaitTimeSeconds:       int32(opts.waitTime / time.Second),
		VisibilityTimeout:     opts.visibilityTimeoutSeconds,
		AttributeNames:        opts.attributeNames,
		MessageAttributeNames: opts.messageAttributeNames,
	}

	output, err := c.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, newTransportError("ReceiveMessage", err)
	}

	return output.Messages, nil
}

// fetchQueueVisibilityTimeout returns the queue's configured VisibilityTimeout attribute in seconds.
func (c *Consumer) fetchQueueVisibilityTimeout(ctx context.Context) (int32, error) {
	input := &sqs.GetQueueAttributesInput{
		QueueUrl:       &c.queueURL,
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameVisibilityTimeout},
	}

	output, err := c.client.GetQueueAttributes(ctx, input)
	if err != nil {
		return 0, newTransportError("GetQueueAttributes", err)
	}

	raw, ok := output.Attributes[string(sqstypes.QueueAttributeNameVisibilityTimeout)]
	if !ok {
		return 0, newTransportError("GetQueueAttributes", fmt.Errorf("attribute %s missing from response", sqstypes.QueueAttributeNameVisibilityTimeout))
	}

	seconds, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, newTransportError("GetQueueAttributes", fmt.Errorf("invalid visibility timeout %q: %w", raw, err))
	}

	return int32(seconds), nil
}

func (c *Consumer) deleteMessage(ctx context.Context, msg *Message) error {
	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: aws.String(msg.ReceiptHandle()),
	}

	if _, err := c.client.DeleteMessage(ctx, input); err != nil {
		return newTransportError("DeleteMessage", err)
	}

	c.logger.WithField("message_id", msg.ID).Debug("SQS message deleted")

	return nil
}

func (c *Consumer) changeMessageVisibility(ctx context.Context, msg *Message, seconds int32) error {
	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &c.queueURL,
		ReceiptHandle:     aws.String(msg.ReceiptHandle()),
		VisibilityTimeout: seconds,
	}

	if _, err := c.client.ChangeMessageVisibility(ctx, input); err != nil {
		return newTransportError("ChangeMessageVisibility", err)
	}

	c.logger.WithField("message_id", msg.ID).WithField("visibility_timeout_seconds", seconds).Debug("SQS message visibility changed")

	return nil
}
