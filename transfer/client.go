package transfer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"
)

type downloadRequest struct {
	RequesterID     string `json:"requesterId"`
	ProviderID      string `json:"providerId"`
	DestinationPath string `json:"destinationPath"`
	Hash            string `json:"hash"`
}

type downloadResponse struct {
	ProviderSettlementAddress string `json:"providerSettlementAddress"`
}

// Client drives the content transfer service that moves the actual bytes
// from a provider to the requester's destination path.
type Client struct {
	client *resty.Client
	log    zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New().SetBaseURL(baseURL).SetTimeout(timeout)

	return &Client{
		client: client,
		log:    log2.With().Str("role", "content_transfer").Caller().Logger(),
	}
}

// Download fetches the content named by req to its destination path and
// returns the provider's settlement address, resolved at transfer
// completion. Any failure means no bytes are owed: a timeout is kept
// distinct because the transfer may still have completed server side.
func (c *Client) Download(ctx context.Context, req market.RetrievalRequest) (string, error) {
	c.log.Debug().Str("hash", req.ContentHash).Str("provider", req.ProviderWalletID).Msg("starting download")

	got, err := c.client.R().SetContext(ctx).
		SetBody(downloadRequest{
			RequesterID:     req.RequesterWalletID,
			ProviderID:      req.ProviderWalletID,
			DestinationPath: req.DestinationPath,
			Hash:            req.ContentHash,
		}).
		Post("/download")
	if err != nil {
		kind := market.TransportKind(err)
		if kind == market.KindNetworkError {
			kind = market.KindTransferError
		}

		return "", market.WrapError(kind, err, "content transfer failed")
	}

	if got.IsError() {
		return "", market.WrapError(
			market.KindTransferError,
			errors.Errorf("transfer service returned %s", got.Status()),
			"provider refused the transfer",
		)
	}

	var response downloadResponse

	err = json.Unmarshal(got.Body(), &response)
	if err != nil {
		return "", errors.Wrap(err, "cannot unmarshal download response")
	}

	if response.ProviderSettlementAddress == "" {
		return "", market.NewError(market.KindTransferError, "transfer completed without a settlement address")
	}

	c.log.Debug().Str("hash", req.ContentHash).Msg("download complete")

	return response.ProviderSettlementAddress, nil
}
