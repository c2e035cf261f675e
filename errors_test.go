//nolint:paralleltest,testpackage // Tests need access to unexported functions
package sqsconsumer

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

type statusError struct {
	status int
}

func (e *statusError) Error() string       { return fmt.Sprintf("http status %d", e.status) }
func (e *statusError) HTTPStatusCode() int { return e.status }

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"forbidden status", &statusError{status: 403}, true},
		{"wrapped forbidden status", fmt.Errorf("operation error: %w", &statusError{status: 403}), true},
		{"server error status", &statusError{status: 500}, false},
		{"credentials error", &smithy.GenericAPIError{Code: "CredentialsError"}, true},
		{"unknown endpoint", &smithy.GenericAPIError{Code: "UnknownEndpoint"}, true},
		{"non-existent queue", &smithy.GenericAPIError{Code: "AWS.SimpleQueueService.NonExistentQueue"}, true},
		{"queue does not exist", &smithy.GenericAPIError{Code: "QueueDoesNotExist"}, true},
		{"throttling", &smithy.GenericAPIError{Code: "ThrottlingException"}, false},
		{"plain error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConnectionError(tt.err))
		})
	}
}

func TestError_Kinds(t *testing.T) {
	cause := errors.New("cause")

	transport := newTransportError("DeleteMessage", cause)
	assert.Equal(t, KindTransport, transport.Kind)
	assert.ErrorIs(t, transport, cause)
	assert.Contains(t, transport.Error(), "DeleteMessage")
	assert.False(t, transport.IsAuthError())

	auth := newTransportError("ReceiveMessage", &smithy.GenericAPIError{Code: "AccessDenied"})
	assert.True(t, auth.IsAuthError())
	assert.True(t, IsAuthError(fmt.Errorf("wrapped: %w", auth)))

	timeout := newTimeoutError(1500 * time.Millisecond)
	assert.Equal(t, KindTimeout, timeout.Kind)
	assert.Contains(t, timeout.Error(), "1500ms")
	assert.False(t, IsAuthError(timeout))

	processing := newProcessingError(cause)
	assert.Equal(t, KindProcessing, processing.Kind)
	assert.ErrorIs(t, processing, cause)
	assert.False(t, IsAuthError(cause))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "processing", KindProcessing.String())
	assert.Equal(t, "unknown", ErrorKind(0).String())
}
