package market

import (
	"context"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf_SurvivesWrapping(t *testing.T) {
	assert := assert.New(t)
	err := NewError(KindInsufficientFunds, "balance too low")
	wrapped := errors.Wrap(errors.Wrap(err, "cannot retrieve"), "handler")
	assert.Equal(KindInsufficientFunds, KindOf(wrapped))
	assert.True(IsKind(wrapped, KindInsufficientFunds))
}

func TestKindOf_PlainError(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(KindNone, KindOf(errors.New("plain")))
	assert.False(IsKind(errors.New("plain"), KindTimeout))
}

func TestWrapError_MessageAndUnwrap(t *testing.T) {
	assert := assert.New(t)
	cause := errors.New("connection refused")
	err := WrapError(KindNetworkError, cause, "cannot reach wallet service")
	assert.Equal("cannot reach wallet service: connection refused", err.Error())
	assert.True(errors.Is(err, cause))
}

func TestTransportKind_DeadlineExceeded(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(KindTimeout, TransportKind(context.DeadlineExceeded))
	assert.Equal(KindTimeout, TransportKind(errors.Wrap(context.DeadlineExceeded, "request failed")))
}

func TestTransportKind_NetTimeout(t *testing.T) {
	assert := assert.New(t)
	timeoutErr := &net.DNSError{IsTimeout: true}
	assert.Equal(KindTimeout, TransportKind(timeoutErr))
}

func TestTransportKind_OtherFailures(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(KindNetworkError, TransportKind(errors.New("connection reset")))
	assert.Equal(KindNetworkError, TransportKind(&net.OpError{Op: "dial", Err: errors.New("refused")}))
}
