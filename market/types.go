package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContentHash is the opaque hex digest a piece of content is published under.
type ContentHash = string

// ProviderOffer is a provider's advertised price for one content hash. Offers
// are only valid for the search cycle that produced them.
type ProviderOffer struct {
	ProviderWalletID string          `json:"providerWalletId"`
	Price            decimal.Decimal `json:"price"`
}

// RetrievalRequest describes one paid retrieval to be driven to a terminal state.
type RetrievalRequest struct {
	RequesterWalletID string      `json:"requesterWalletId"`
	ProviderWalletID  string      `json:"providerWalletId"`
	ContentHash       ContentHash `json:"contentHash"`
	DestinationPath   string      `json:"destinationPath"`
}

type RetrievalStatus string

const (
	StatusSettled           RetrievalStatus = "settled"
	StatusInsufficientFunds RetrievalStatus = "insufficient_funds"
	StatusTransferFailed    RetrievalStatus = "transfer_failed"
	StatusPaymentFailed     RetrievalStatus = "payment_failed"
)

// RetrievalOutcome is the terminal state of one retrieval attempt. Payment is
// set only when the attempt settled. Reason keeps the failure kind machine
// readable: a timed-out settlement may have gone through server side, so the
// caller must be able to tell a timeout from outright rejection before
// resuming payment.
type RetrievalOutcome struct {
	Status            RetrievalStatus `json:"status"`
	Reason            Kind            `json:"reason,omitempty"`
	SettlementAddress string          `json:"settlementAddress,omitempty"`
	Payment           *PaymentRecord  `json:"payment,omitempty"`
	ErrorMessage      string          `json:"errorMessage,omitempty"`
}

// PaymentRecord is the ledger entry the wallet service creates for a settled
// transfer. It is immutable once created; this client only requests it.
type PaymentRecord struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Memo      string          `json:"memo"`
	SettledAt time.Time       `json:"settledAt"`
}

// ProxyNode is the static descriptor of a relay node offering paid proxying.
type ProxyNode struct {
	ID           string          `json:"id"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	IP           string          `json:"ip"`
	Port         int             `json:"port"`
}

// ProxySession is the handshake-confirmed state of the single active proxy
// connection. ElapsedSeconds is wall-clock based and may include intervals
// the process spent suspended.
type ProxySession struct {
	Node           ProxyNode `json:"node"`
	ConnectedAt    time.Time `json:"connectedAt"`
	ElapsedSeconds int64     `json:"elapsedSeconds"`
	Enabled        bool      `json:"enabled"`
}
