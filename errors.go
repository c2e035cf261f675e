package sqsconsumer

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/smithy-go"
)

// ErrorKind classifies a failure observed by the [Consumer].
type ErrorKind int

const (
	// KindTransport means an SQS API call failed.
	KindTransport ErrorKind = iota + 1
	// KindTimeout means a handler exceeded its processing budget.
	KindTimeout
	// KindProcessing means a handler returned an error or panicked.
	KindProcessing
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Error is the error type carried by error events. The kind is fixed at the
// point of failure and is never inferred from the wrapped error afterwards.
type Error struct {
	Kind ErrorKind
	// Op names the failed operation, for example "ReceiveMessage" or "handler".
	Op  string
	Err error

	auth bool
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("SQS %s failed: %v", e.Op, e.Err)
	case KindTimeout:
		return e.Err.Error()
	default:
		return fmt.Sprintf("unexpected message handler failure: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether a transport failure was caused by bad
// credentials, missing permissions or a queue that cannot be reached.
func (e *Error) IsAuthError() bool {
	return e.Kind == KindTransport && e.auth
}

// IsAuthError reports whether err is an authentication-classified transport error.
func IsAuthError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsAuthError()
}

// authErrorCodes lists API error codes that indicate a misconfigured
// credential or endpoint rather than a transient fault.
var authErrorCodes = map[string]struct{}{
	"CredentialsError":                        {},
	"UnknownEndpoint":                         {},
	"AWS.SimpleQueueService.NonExistentQueue": {},
	"QueueDoesNotExist":                       {},
	"InvalidClientTokenId":                    {},
	"AccessDenied":                            {},
	"AccessDeniedException":                   {},
	"SignatureDoesNotMatch":                   {},
	"ExpiredToken":                            {},
}

func newTransportError(op string, err error) *Error {
	return &Error{
		Kind: KindTransport,
		Op:   op,
		Err:  err,
		auth: isConnectionError(err),
	}
}

func newTimeoutError(budget time.Duration) *Error {
	return &Error{
		Kind: KindTimeout,
		Op:   "handler",
		Err:  fmt.Errorf("message handler timed out after %dms: operation timed out", budget.Milliseconds()),
	}
}

func newProcessingError(err error) *Error {
	return &Error{
		Kind: KindProcessing,
		Op:   "handler",
		Err:  err,
	}
}

func isConnectionError(err error) bool {
	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) && statusErr.HTTPStatusCode() == http.StatusForbidden {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, ok := authErrorCodes[apiErr.ErrorCode()]
		return ok
	}

	return false
}
