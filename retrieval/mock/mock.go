package mock

import (
	"context"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) Lookup(ctx context.Context, hash market.ContentHash) ([]market.ProviderOffer, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]market.ProviderOffer), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Warm(ctx context.Context, peerIDs []string) error {
	args := m.Called(ctx, peerIDs)
	return args.Error(0)
}

type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Balance(ctx context.Context, walletName string) (decimal.Decimal, error) {
	args := m.Called(ctx, walletName)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockWallet) Transfer(
	ctx context.Context,
	from string,
	to string,
	amount decimal.Decimal,
	memo string,
) (*market.PaymentRecord, error) {
	args := m.Called(ctx, from, to, amount, memo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*market.PaymentRecord), args.Error(1)
}

type MockTransfer struct {
	mock.Mock
}

func (m *MockTransfer) Download(ctx context.Context, req market.RetrievalRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
