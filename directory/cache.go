package directory

import (
	"context"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"
)

type warmRequest struct {
	PeerIDs []string `json:"peerIds"`
}

// CacheClient tells the peer cache service which peer ids are about to be
// used so the next lookups are fast. The call is advisory; callers swallow
// its errors.
type CacheClient struct {
	client *resty.Client
	log    zerolog.Logger
}

func NewCacheClient(baseURL string, timeout time.Duration) *CacheClient {
	client := resty.New().SetBaseURL(baseURL).SetTimeout(timeout)

	return &CacheClient{
		client: client,
		log:    log2.With().Str("role", "peer_cache").Caller().Logger(),
	}
}

func (c *CacheClient) Warm(ctx context.Context, peerIDs []string) error {
	got, err := c.client.R().SetContext(ctx).
		SetBody(warmRequest{PeerIDs: peerIDs}).
		Post("/putPeersInCache")
	if err != nil {
		return market.WrapError(market.TransportKind(err), err, "cannot reach peer cache")
	}

	if got.IsError() {
		return market.WrapError(
			market.KindNetworkError,
			errors.Errorf("peer cache returned %s", got.Status()),
			"cache warm-up rejected",
		)
	}

	c.log.Debug().Int("peers", len(peerIDs)).Msg("peer cache warmed")

	return nil
}
