package proxy

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
)

const statusConnected = "connected"

// Handshaker confirms with a proxy node that it accepts this client. A
// session is only treated as live after a successful confirmation.
type Handshaker interface {
	Confirm(ctx context.Context, node market.ProxyNode) error
}

type handshakeResponse struct {
	Status string `json:"status"`
}

type HandshakeClient struct {
	client *resty.Client
	log    zerolog.Logger
}

func NewHandshakeClient(timeout time.Duration) *HandshakeClient {
	return &HandshakeClient{
		client: resty.New().SetTimeout(timeout),
		log:    log2.With().Str("role", "proxy_handshake").Caller().Logger(),
	}
}

func (c *HandshakeClient) Confirm(ctx context.Context, node market.ProxyNode) error {
	url := fmt.Sprintf("http://%s:%d/handshake", node.IP, node.Port)

	c.log.Debug().Str("node", node.ID).Str("url", url).Msg("confirming proxy connection")

	got, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return market.WrapError(market.TransportKind(err), err, "cannot reach proxy node")
	}

	if got.IsError() {
		return market.WrapError(
			market.KindNetworkError,
			errors.Errorf("proxy node returned %s", got.Status()),
			"handshake failed",
		)
	}

	var response handshakeResponse

	err = json.Unmarshal(got.Body(), &response)
	if err != nil {
		return errors.Wrap(err, "cannot unmarshal handshake response")
	}

	if response.Status != statusConnected {
		return market.NewError(market.KindNetworkError, "proxy node rejected the connection")
	}

	return nil
}
