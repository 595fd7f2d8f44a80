package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
)

type ProviderDirectory interface {
	Lookup(ctx context.Context, hash market.ContentHash) ([]market.ProviderOffer, error)
}

type PeerCache interface {
	Warm(ctx context.Context, peerIDs []string) error
}

type Wallet interface {
	Balance(ctx context.Context, walletName string) (decimal.Decimal, error)
	Transfer(ctx context.Context, from string, to string, amount decimal.Decimal, memo string) (
		*market.PaymentRecord,
		error,
	)
}

type ContentTransfer interface {
	Download(ctx context.Context, req market.RetrievalRequest) (string, error)
}

const (
	defaultWarmTimeout = 5 * time.Second
	defaultMaxJobs     = 4
)

// Orchestrator drives one paid retrieval to a terminal state: directory
// lookup, cache warm-up, balance check, content transfer, settlement. Payment
// is strictly gated on a confirmed transfer, and the price quoted at search
// time is authoritative for settlement.
type Orchestrator struct {
	directory   ProviderDirectory
	cache       PeerCache
	wallet      Wallet
	transfer    ContentTransfer
	ledger      *Ledger
	warmTimeout time.Duration
	sem         *semaphore.Weighted
	log         zerolog.Logger

	mu       sync.Mutex
	offers   map[market.ContentHash]map[string]market.ProviderOffer
	inflight map[string]struct{}
}

type Config struct {
	Directory   ProviderDirectory
	Cache       PeerCache
	Wallet      Wallet
	Transfer    ContentTransfer
	Ledger      *Ledger
	WarmTimeout time.Duration
	MaxJobs     int64
}

func NewOrchestrator(config Config) (*Orchestrator, error) {
	if config.Ledger == nil {
		return nil, errors.New("ledger is required")
	}

	warmTimeout := config.WarmTimeout
	if warmTimeout == 0 {
		warmTimeout = defaultWarmTimeout
	}

	maxJobs := config.MaxJobs
	if maxJobs == 0 {
		maxJobs = defaultMaxJobs
	}

	return &Orchestrator{
		directory:   config.Directory,
		cache:       config.Cache,
		wallet:      config.Wallet,
		transfer:    config.Transfer,
		ledger:      config.Ledger,
		warmTimeout: warmTimeout,
		sem:         semaphore.NewWeighted(maxJobs),
		log:         log2.With().Str("role", "retrieval_orchestrator").Caller().Logger(),
		offers:      make(map[market.ContentHash]map[string]market.ProviderOffer),
		inflight:    make(map[string]struct{}),
	}, nil
}

// SearchProviders looks up the offers for hash, remembers them for the next
// Retrieve call and warms the peer cache with every returned provider id.
// The warm-up is best effort: its failure is logged and swallowed, never
// failing the search.
func (o *Orchestrator) SearchProviders(ctx context.Context, hash market.ContentHash) ([]market.ProviderOffer, error) {
	offers, err := o.directory.Lookup(ctx, hash)
	if err != nil {
		return nil, errors.Wrap(err, "cannot look up providers")
	}

	byProvider := make(map[string]market.ProviderOffer, len(offers))
	peerIDs := make([]string, 0, len(offers))

	for _, offer := range offers {
		byProvider[offer.ProviderWalletID] = offer
		peerIDs = append(peerIDs, offer.ProviderWalletID)
	}

	o.mu.Lock()
	o.offers[hash] = byProvider
	o.mu.Unlock()

	o.log.Info().Str("hash", hash).Int("offers", len(offers)).Msg("provider search complete")

	go o.warmPeerCache(peerIDs)

	return offers, nil
}

func (o *Orchestrator) warmPeerCache(peerIDs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.warmTimeout)
	defer cancel()

	err := o.cache.Warm(ctx, peerIDs)
	if err != nil {
		o.log.Warn().Err(err).Int("peers", len(peerIDs)).Msg("peer cache warm-up failed")
	}
}

// Retrieve drives req to a terminal state. Soft failures land in the
// returned outcome; an error return means no transfer happened and no
// payment was issued, with any started attempt marked abandoned.
//
//nolint:funlen,cyclop
func (o *Orchestrator) Retrieve(ctx context.Context, req market.RetrievalRequest) (*market.RetrievalOutcome, error) {
	key := req.RequesterWalletID + "/" + req.ContentHash

	o.mu.Lock()
	if _, ok := o.inflight[key]; ok {
		o.mu.Unlock()

		return nil, market.NewError(
			market.KindRetrievalInProgress,
			"a retrieval for this requester and content hash is already in flight",
		)
	}

	o.inflight[key] = struct{}{}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inflight, key)
		o.mu.Unlock()
	}()

	err := o.sem.Acquire(ctx, 1)
	if err != nil {
		return nil, errors.Wrap(err, "cannot acquire retrieval slot")
	}
	defer o.sem.Release(1)

	log := o.log.With().Str("hash", req.ContentHash).Str("provider", req.ProviderWalletID).Logger()

	// A payment_failed attempt for the same (hash, destination) pair means
	// the content is already on disk; only the payment step is re-attempted.
	previous, err := o.ledger.Resumable(ctx, req.ContentHash, req.DestinationPath)
	if err != nil {
		return nil, errors.Wrap(err, "cannot check for resumable attempt")
	}

	if previous != nil {
		log.Info().Str("attemptId", previous.ID.String()).Msg("resuming payment for a completed transfer")

		price, err := decimal.NewFromString(previous.Price)
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse quoted price of resumable attempt")
		}

		return o.settle(ctx, previous.ID, req, previous.SettlementAddress, price)
	}

	o.mu.Lock()
	offer, ok := o.offers[req.ContentHash][req.ProviderWalletID]
	o.mu.Unlock()

	if !ok {
		return nil, market.NewError(
			market.KindUnknownProvider,
			"provider was not part of the last search for this hash",
		)
	}

	attempt, err := o.ledger.Begin(ctx, req, offer.Price)
	if err != nil {
		return nil, errors.Wrap(err, "cannot begin retrieval attempt")
	}

	log = log.With().Str("attemptId", attempt.ID.String()).Logger()

	balance, err := o.wallet.Balance(ctx, req.RequesterWalletID)
	if err != nil {
		// The attempt row must not dangle in offer_selected; nothing has
		// been transferred or paid, so it is abandoned, not resumable.
		transitionErr := o.ledger.Transition(ctx, attempt.ID, StateAbandoned, err.Error())
		if transitionErr != nil {
			log.Warn().Err(transitionErr).Msg("cannot abandon attempt after balance query failure")
		}

		return nil, errors.Wrap(err, "cannot query requester balance")
	}

	if balance.LessThan(offer.Price) {
		log.Info().Str("balance", balance.String()).Str("price", offer.Price.String()).
			Msg("insufficient funds, no transfer attempted")

		err = o.ledger.Transition(ctx, attempt.ID, StateInsufficientFunds, "")
		if err != nil {
			return nil, err
		}

		return &market.RetrievalOutcome{
			Status:       market.StatusInsufficientFunds,
			Reason:       market.KindInsufficientFunds,
			ErrorMessage: "balance " + balance.String() + " is below the quoted price " + offer.Price.String(),
		}, nil
	}

	err = o.ledger.Transition(ctx, attempt.ID, StateBalanceChecked, "")
	if err != nil {
		return nil, err
	}

	err = o.ledger.Transition(ctx, attempt.ID, StateTransferring, "")
	if err != nil {
		return nil, err
	}

	settlementAddress, err := o.transfer.Download(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("content transfer failed, no payment issued")

		transitionErr := o.ledger.Transition(ctx, attempt.ID, StateTransferFailed, err.Error())
		if transitionErr != nil {
			return nil, transitionErr
		}

		return &market.RetrievalOutcome{
			Status:       market.StatusTransferFailed,
			Reason:       market.KindOf(err),
			ErrorMessage: err.Error(),
		}, nil
	}

	// The transfer is confirmed: from here on ledger writes must not be lost
	// to the caller's cancellation, or the attempt stops being resumable.
	persistCtx := context.WithoutCancel(ctx)

	err = o.ledger.RecordTransfer(persistCtx, attempt.ID, settlementAddress)
	if err != nil {
		return nil, err
	}

	log.Info().Str("settlementAddress", settlementAddress).Msg("transfer confirmed")

	// Cancellation is honored up to here. The artifact stays on disk and the
	// attempt is left resumable so only the payment is retried later.
	if err := ctx.Err(); err != nil {
		transitionErr := o.ledger.Transition(persistCtx, attempt.ID, StatePaymentFailed, "canceled before settlement")
		if transitionErr != nil {
			return nil, transitionErr
		}

		return &market.RetrievalOutcome{
			Status:            market.StatusPaymentFailed,
			SettlementAddress: settlementAddress,
			ErrorMessage:      "canceled before settlement",
		}, nil
	}

	return o.settle(ctx, attempt.ID, req, settlementAddress, offer.Price)
}

// settle pays the quoted price to the settlement address. Once settlement is
// requested the operation runs to a terminal state, so the caller's
// cancellation no longer applies.
func (o *Orchestrator) settle(
	ctx context.Context,
	attemptID uuid.UUID,
	req market.RetrievalRequest,
	settlementAddress string,
	price decimal.Decimal,
) (*market.RetrievalOutcome, error) {
	ctx = context.WithoutCancel(ctx)

	err := o.ledger.Transition(ctx, attemptID, StateSettling, "")
	if err != nil {
		return nil, err
	}

	record, err := o.wallet.Transfer(ctx, req.RequesterWalletID, settlementAddress, price, req.ContentHash)
	if err != nil {
		o.log.Error().Err(err).Str("attemptId", attemptID.String()).
			Msg("settlement failed, downloaded artifact retained")

		transitionErr := o.ledger.Transition(ctx, attemptID, StatePaymentFailed, err.Error())
		if transitionErr != nil {
			return nil, transitionErr
		}

		return &market.RetrievalOutcome{
			Status:            market.StatusPaymentFailed,
			Reason:            market.KindOf(err),
			SettlementAddress: settlementAddress,
			ErrorMessage:      err.Error(),
		}, nil
	}

	err = o.ledger.Transition(ctx, attemptID, StateSettled, "")
	if err != nil {
		return nil, err
	}

	o.log.Info().Str("attemptId", attemptID.String()).Str("amount", price.String()).
		Str("to", settlementAddress).Msg("retrieval settled")

	return &market.RetrievalOutcome{
		Status:            market.StatusSettled,
		SettlementAddress: settlementAddress,
		Payment:           record,
	}, nil
}

// History lists the requester's past retrieval attempts, newest first.
func (o *Orchestrator) History(ctx context.Context, requesterWalletID string) ([]Attempt, error) {
	return o.ledger.ByRequester(ctx, requesterWalletID)
}
