package retrieval

import (
	"context"
	"testing"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.Nil(t, err)
	ledger, err := NewLedger(db)
	assert.Nil(t, err)
	return ledger
}

func testRetrievalRequest() market.RetrievalRequest {
	return market.RetrievalRequest{
		RequesterWalletID: "alice",
		ProviderWalletID:  "bob",
		ContentHash:       "abc123",
		DestinationPath:   "/tmp/abc123.dat",
	}
}

func TestLedger_BeginRecordsQuotedPrice(t *testing.T) {
	assert := assert.New(t)
	ledger := testLedger(t)
	ctx := context.Background()

	attempt, err := ledger.Begin(ctx, testRetrievalRequest(), decimal.NewFromInt(3))
	assert.Nil(err)
	assert.Equal(StateOfferSelected, attempt.State)
	assert.Equal("3", attempt.Price)
	assert.Equal("alice", attempt.RequesterWalletID)
}

func TestLedger_ResumableOnlyAfterPaymentFailure(t *testing.T) {
	assert := assert.New(t)
	ledger := testLedger(t)
	ctx := context.Background()
	req := testRetrievalRequest()

	found, err := ledger.Resumable(ctx, req.ContentHash, req.DestinationPath)
	assert.Nil(err)
	assert.Nil(found)

	attempt, err := ledger.Begin(ctx, req, decimal.NewFromInt(3))
	assert.Nil(err)

	found, err = ledger.Resumable(ctx, req.ContentHash, req.DestinationPath)
	assert.Nil(err)
	assert.Nil(found)

	err = ledger.RecordTransfer(ctx, attempt.ID, "addr-bob")
	assert.Nil(err)
	err = ledger.Transition(ctx, attempt.ID, StatePaymentFailed, "wallet unreachable")
	assert.Nil(err)

	found, err = ledger.Resumable(ctx, req.ContentHash, req.DestinationPath)
	assert.Nil(err)
	assert.NotNil(found)
	assert.Equal(attempt.ID, found.ID)
	assert.Equal("addr-bob", found.SettlementAddress)
	assert.Equal("3", found.Price)
}

func TestLedger_ResumableMatchesExactDestination(t *testing.T) {
	assert := assert.New(t)
	ledger := testLedger(t)
	ctx := context.Background()
	req := testRetrievalRequest()

	attempt, err := ledger.Begin(ctx, req, decimal.NewFromInt(3))
	assert.Nil(err)
	err = ledger.Transition(ctx, attempt.ID, StatePaymentFailed, "wallet unreachable")
	assert.Nil(err)

	found, err := ledger.Resumable(ctx, req.ContentHash, "/tmp/other.dat")
	assert.Nil(err)
	assert.Nil(found)
}

func TestLedger_SettledAttemptIsNotResumable(t *testing.T) {
	assert := assert.New(t)
	ledger := testLedger(t)
	ctx := context.Background()
	req := testRetrievalRequest()

	attempt, err := ledger.Begin(ctx, req, decimal.NewFromInt(3))
	assert.Nil(err)
	err = ledger.RecordTransfer(ctx, attempt.ID, "addr-bob")
	assert.Nil(err)
	err = ledger.Transition(ctx, attempt.ID, StateSettled, "")
	assert.Nil(err)

	found, err := ledger.Resumable(ctx, req.ContentHash, req.DestinationPath)
	assert.Nil(err)
	assert.Nil(found)
}

func TestLedger_ByRequesterNewestFirst(t *testing.T) {
	assert := assert.New(t)
	ledger := testLedger(t)
	ctx := context.Background()

	first, err := ledger.Begin(ctx, testRetrievalRequest(), decimal.NewFromInt(3))
	assert.Nil(err)

	second := testRetrievalRequest()
	second.ContentHash = "def456"
	_, err = ledger.Begin(ctx, second, decimal.NewFromInt(5))
	assert.Nil(err)

	other := testRetrievalRequest()
	other.RequesterWalletID = "carol"
	_, err = ledger.Begin(ctx, other, decimal.NewFromInt(1))
	assert.Nil(err)

	attempts, err := ledger.ByRequester(ctx, "alice")
	assert.Nil(err)
	assert.Len(attempts, 2)
	assert.Contains([]string{attempts[0].ContentHash, attempts[1].ContentHash}, first.ContentHash)

	attempts, err = ledger.ByRequester(ctx, "nobody")
	assert.Nil(err)
	assert.Empty(attempts)
}
