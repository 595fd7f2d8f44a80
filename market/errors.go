package market

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// Kind classifies the failures a caller has to tell apart. Discovery and
// caching errors never mutate transactional state; transfer and payment
// errors are terminal for the attempt that raised them.
type Kind string

const (
	KindNone                 Kind = ""
	KindNotFound             Kind = "not_found"
	KindUnknownProvider      Kind = "unknown_provider"
	KindNetworkError         Kind = "network_error"
	KindInsufficientFunds    Kind = "insufficient_funds"
	KindTransferError        Kind = "transfer_error"
	KindPaymentError         Kind = "payment_error"
	KindSessionAlreadyActive Kind = "session_already_active"
	KindRetrievalInProgress  Kind = "retrieval_in_progress"
	KindTimeout              Kind = "timeout"
)

type Error struct {
	Kind  Kind
	cause error
	msg   string
}

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func WrapError(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, cause: cause, msg: msg}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.msg
	}

	return e.msg + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the failure kind from anywhere in a wrap chain. It returns
// KindNone for plain errors.
func KindOf(err error) Kind {
	var marketErr *Error
	if errors.As(err, &marketErr) {
		return marketErr.Kind
	}

	return KindNone
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// TransportKind maps a client transport failure onto the taxonomy. Timeouts
// stay distinguishable from outright rejection because a timeout does not
// prove the operation failed server side.
func TransportKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindNetworkError
}
