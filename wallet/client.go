package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type addressResponse struct {
	Address string `json:"address"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type transferRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Memo   string          `json:"memo"`
}

type transferResponse struct {
	SettledAt time.Time `json:"settledAt"`
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Username string
	Password string
}

// Client talks to the wallet REST service. The service owns the ledger; this
// client only queries balances, resolves addresses and requests transfers.
type Client struct {
	client *resty.Client
	log    zerolog.Logger
}

func NewClient(config Config) *Client {
	client := resty.New().SetBaseURL(config.BaseURL).SetTimeout(config.Timeout)

	if config.Username != "" {
		client.SetBasicAuth(config.Username, config.Password)
	}

	return &Client{
		client: client,
		log:    log2.With().Str("role", "wallet_client").Caller().Logger(),
	}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	got, err := c.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return market.WrapError(market.TransportKind(err), err, "cannot reach wallet service")
	}

	if got.IsError() {
		return market.WrapError(
			market.KindNetworkError,
			errors.Errorf("wallet service returned %s", got.Status()),
			"wallet call failed",
		)
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(got.Body(), out)
	if err != nil {
		return errors.Wrap(err, "cannot unmarshal wallet response")
	}

	return nil
}

func (c *Client) Balance(ctx context.Context, walletName string) (decimal.Decimal, error) {
	var response balanceResponse

	err := c.get(ctx, "/getbalance/"+walletName, &response)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "cannot query balance")
	}

	return response.Balance, nil
}

// NewAddress resolves a fresh settlement address under the given label.
func (c *Client) NewAddress(ctx context.Context, walletName string, label string) (string, error) {
	var response addressResponse

	path := "/newaddress/" + walletName
	if label != "" {
		path = path + "/" + label
	}

	err := c.get(ctx, path, &response)
	if err != nil {
		return "", errors.Wrap(err, "cannot generate address")
	}

	return response.Address, nil
}

func (c *Client) CreateWallet(ctx context.Context, walletName string) error {
	err := c.get(ctx, "/createwallet/"+walletName, nil)

	return errors.Wrap(err, "cannot create wallet")
}

func (c *Client) UnlockWallet(ctx context.Context, address string, passphrase string) error {
	err := c.get(ctx, "/unlockwallet/"+address+"/"+passphrase, nil)

	return errors.Wrap(err, "cannot unlock wallet")
}

func (c *Client) LockWallet(ctx context.Context, walletName string) error {
	err := c.get(ctx, "/lockwallet/"+walletName, nil)

	return errors.Wrap(err, "cannot lock wallet")
}

func (c *Client) Mine(ctx context.Context, address string, amount int64) error {
	err := c.get(ctx, fmt.Sprintf("/minecoins/%s/%d", address, amount), nil)

	return errors.Wrap(err, "cannot mine coins")
}

// Transfer requests settlement of amount from one wallet to another. A
// PaymentRecord is returned only when the wallet service acknowledged the
// transfer; a timeout is surfaced as such because the transfer may still
// have gone through server side.
func (c *Client) Transfer(
	ctx context.Context,
	from string,
	to string,
	amount decimal.Decimal,
	memo string,
) (*market.PaymentRecord, error) {
	c.log.Debug().Str("from", from).Str("to", to).Str("amount", amount.String()).Msg("requesting transfer")

	got, err := c.client.R().SetContext(ctx).
		SetBody(transferRequest{From: from, To: to, Amount: amount, Memo: memo}).
		Post("/transfer")
	if err != nil {
		return nil, market.WrapError(market.TransportKind(err), err, "cannot reach wallet service")
	}

	if got.IsError() {
		return nil, market.WrapError(
			market.KindPaymentError,
			errors.Errorf("wallet service returned %s", got.Status()),
			"transfer rejected",
		)
	}

	var response transferResponse

	err = json.Unmarshal(got.Body(), &response)
	if err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal transfer response")
	}

	settledAt := response.SettledAt
	if settledAt.IsZero() {
		settledAt = time.Now()
	}

	return &market.PaymentRecord{
		From:      from,
		To:        to,
		Amount:    amount,
		Memo:      memo,
		SettledAt: settledAt,
	}, nil
}
