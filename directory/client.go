package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Client queries the provider directory service for offers on a content
// hash. It carries no retry policy of its own; retries belong to the caller.
type Client struct {
	client *resty.Client
	log    zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New().SetBaseURL(baseURL).SetTimeout(timeout)

	return &Client{
		client: client,
		log:    log2.With().Str("role", "provider_directory").Caller().Logger(),
	}
}

// Lookup returns the offers registered for hash, cheapest first. A missing
// hash and an empty offer set are both surfaced as not_found.
func (c *Client) Lookup(ctx context.Context, hash market.ContentHash) ([]market.ProviderOffer, error) {
	c.log.Debug().Str("hash", hash).Msg("looking up providers")

	got, err := c.client.R().SetContext(ctx).Get("/getProviders/" + hash)
	if err != nil {
		return nil, market.WrapError(market.TransportKind(err), err, "cannot reach provider directory")
	}

	if got.StatusCode() == http.StatusNotFound {
		return nil, market.NewError(market.KindNotFound, "no providers registered for hash "+hash)
	}

	if got.IsError() {
		return nil, market.WrapError(
			market.KindNetworkError,
			errors.Errorf("directory returned %s", got.Status()),
			"provider lookup failed",
		)
	}

	prices := make(map[string]decimal.Decimal)

	err = json.Unmarshal(got.Body(), &prices)
	if err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal provider prices")
	}

	if len(prices) == 0 {
		return nil, market.NewError(market.KindNotFound, "no providers registered for hash "+hash)
	}

	offers := make([]market.ProviderOffer, 0, len(prices))
	for walletID, price := range prices {
		offers = append(offers, market.ProviderOffer{ProviderWalletID: walletID, Price: price})
	}

	sort.Slice(offers, func(i, j int) bool {
		if offers[i].Price.Equal(offers[j].Price) {
			return offers[i].ProviderWalletID < offers[j].ProviderWalletID
		}

		return offers[i].Price.LessThan(offers[j].Price)
	})

	c.log.Debug().Str("hash", hash).Int("offers", len(offers)).Msg("provider lookup complete")

	return offers, nil
}
