package mock

import (
	"context"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/stretchr/testify/mock"
)

type MockHandshaker struct {
	mock.Mock
}

func (m *MockHandshaker) Confirm(ctx context.Context, node market.ProxyNode) error {
	args := m.Called(ctx, node)
	return args.Error(0)
}
