package retrieval

import (
	"context"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type State = string

const (
	StateOfferSelected     State = "offer_selected"
	StateBalanceChecked    State = "balance_checked"
	StateTransferring      State = "transferring"
	StateTransferred       State = "transferred"
	StateSettling          State = "settling"
	StateSettled           State = "settled"
	StateInsufficientFunds State = "insufficient_funds"
	StateTransferFailed    State = "transfer_failed"
	StatePaymentFailed     State = "payment_failed"
	StateAbandoned         State = "abandoned"
)

// Attempt is one retrieval walked through the state machine. Every
// transition is persisted so a payment failure after a confirmed transfer
// survives a process restart and can be resumed payment-only.
type Attempt struct {
	ID                uuid.UUID `json:"id" gorm:"primarykey;type:uuid"`
	RequesterWalletID string    `json:"requesterWalletId" gorm:"index"`
	ProviderWalletID  string    `json:"providerWalletId"`
	ContentHash       string    `json:"contentHash" gorm:"index:idx_hash_dest"`
	DestinationPath   string    `json:"destinationPath" gorm:"index:idx_hash_dest"`
	Price             string    `json:"price"`
	SettlementAddress string    `json:"settlementAddress"`
	State             State     `json:"state"`
	ErrorMessage      string    `json:"errorMessage"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) (*Ledger, error) {
	err := db.AutoMigrate(&Attempt{})
	if err != nil {
		return nil, errors.Wrap(err, "cannot migrate retrieval attempts")
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Begin(ctx context.Context, req market.RetrievalRequest, price decimal.Decimal) (*Attempt, error) {
	attempt := Attempt{
		ID:                uuid.New(),
		RequesterWalletID: req.RequesterWalletID,
		ProviderWalletID:  req.ProviderWalletID,
		ContentHash:       req.ContentHash,
		DestinationPath:   req.DestinationPath,
		Price:             price.String(),
		State:             StateOfferSelected,
	}

	err := l.db.WithContext(ctx).Create(&attempt).Error
	if err != nil {
		return nil, errors.Wrap(err, "cannot create retrieval attempt")
	}

	return &attempt, nil
}

func (l *Ledger) Transition(ctx context.Context, id uuid.UUID, state State, errorMessage string) error {
	err := l.db.WithContext(ctx).Model(&Attempt{}).Where("id = ?", id).
		Updates(map[string]interface{}{"state": state, "error_message": errorMessage}).Error
	if err != nil {
		return errors.Wrapf(err, "cannot transition attempt to %s", state)
	}

	return nil
}

// RecordTransfer marks the transfer as confirmed and remembers the
// settlement address resolved at completion. From here on the attempt is
// resumable without a second download.
func (l *Ledger) RecordTransfer(ctx context.Context, id uuid.UUID, settlementAddress string) error {
	err := l.db.WithContext(ctx).Model(&Attempt{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":              StateTransferred,
			"settlement_address": settlementAddress,
			"error_message":      "",
		}).Error
	if err != nil {
		return errors.Wrap(err, "cannot record confirmed transfer")
	}

	return nil
}

// Resumable returns the most recent payment_failed attempt for the exact
// (contentHash, destinationPath) pair, or nil when a fresh retrieval is due.
func (l *Ledger) Resumable(ctx context.Context, hash market.ContentHash, destinationPath string) (*Attempt, error) {
	var attempt Attempt

	err := l.db.WithContext(ctx).
		Where("content_hash = ? AND destination_path = ? AND state = ?", hash, destinationPath, StatePaymentFailed).
		Order("updated_at DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, errors.Wrap(err, "cannot look up resumable attempt")
	}

	return &attempt, nil
}

func (l *Ledger) ByRequester(ctx context.Context, requesterWalletID string) ([]Attempt, error) {
	var attempts []Attempt

	err := l.db.WithContext(ctx).
		Where("requester_wallet_id = ?", requesterWalletID).
		Order("created_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, errors.Wrap(err, "cannot fetch retrieval history")
	}

	return attempts, nil
}
