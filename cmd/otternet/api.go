package main

import (
	"context"
	"net/http"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"
	"github.com/louisf098/Otternet-Team-Otter-sub000/proxy"
	"github.com/louisf098/Otternet-Team-Otter-sub000/retrieval"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	providersRoute       = "/providers/:hash"
	downloadRoute        = "/download"
	downloadHistoryRoute = "/downloads/:wallet"
	balanceRoute         = "/balance/:wallet"
	proxyConnectRoute    = "/proxy/connect"
	proxyDisconnectRoute = "/proxy/disconnect"
	proxySessionRoute    = "/proxy/session"
	proxyHistoryRoute    = "/proxy/history"
)

type providerSearcher interface {
	SearchProviders(ctx context.Context, hash market.ContentHash) ([]market.ProviderOffer, error)
}

type retriever interface {
	Retrieve(ctx context.Context, req market.RetrievalRequest) (*market.RetrievalOutcome, error)
	History(ctx context.Context, requesterWalletID string) ([]retrieval.Attempt, error)
}

type balanceQuerier interface {
	Balance(ctx context.Context, walletName string) (decimal.Decimal, error)
}

type sessionManager interface {
	Connect(ctx context.Context, node market.ProxyNode) error
	Disconnect(ctx context.Context) error
	Session() *market.ProxySession
}

type sessionHistorian interface {
	History(ctx context.Context) ([]proxy.HistoryEntry, error)
}

type errorBody struct {
	Kind    market.Kind `json:"error"`
	Message string      `json:"message"`
}

// kindResponse maps the failure taxonomy onto HTTP statuses so the UI can
// tell a doomed request from a retryable one.
func kindResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	switch market.KindOf(err) {
	case market.KindNotFound, market.KindUnknownProvider:
		status = http.StatusNotFound
	case market.KindInsufficientFunds:
		status = http.StatusPaymentRequired
	case market.KindRetrievalInProgress, market.KindSessionAlreadyActive:
		status = http.StatusConflict
	case market.KindTimeout:
		status = http.StatusGatewayTimeout
	case market.KindNetworkError, market.KindTransferError, market.KindPaymentError:
		status = http.StatusBadGateway
	case market.KindNone:
	}

	return c.JSON(status, errorBody{Kind: market.KindOf(err), Message: err.Error()})
}

func searchProvidersHandler(c echo.Context, orchestrator providerSearcher) error {
	offers, err := orchestrator.SearchProviders(c.Request().Context(), c.Param("hash"))
	if err != nil {
		return kindResponse(c, err)
	}

	return c.JSON(http.StatusOK, offers)
}

func downloadHandler(c echo.Context, orchestrator retriever) error {
	var req market.RetrievalRequest

	err := c.Bind(&req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "invalid retrieval request"})
	}

	outcome, err := orchestrator.Retrieve(c.Request().Context(), req)
	if err != nil {
		return kindResponse(c, err)
	}

	return c.JSON(http.StatusOK, outcome)
}

func downloadHistoryHandler(c echo.Context, orchestrator retriever) error {
	attempts, err := orchestrator.History(c.Request().Context(), c.Param("wallet"))
	if err != nil {
		return kindResponse(c, err)
	}

	return c.JSON(http.StatusOK, attempts)
}

func balanceHandler(c echo.Context, wallet balanceQuerier) error {
	balance, err := wallet.Balance(c.Request().Context(), c.Param("wallet"))
	if err != nil {
		return kindResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

func proxyConnectHandler(c echo.Context, manager sessionManager) error {
	var node market.ProxyNode

	err := c.Bind(&node)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "invalid proxy node"})
	}

	err = manager.Connect(c.Request().Context(), node)
	if err != nil {
		return kindResponse(c, err)
	}

	return c.JSON(http.StatusOK, manager.Session())
}

func proxyDisconnectHandler(c echo.Context, manager sessionManager) error {
	err := manager.Disconnect(c.Request().Context())
	if err != nil {
		return kindResponse(c, err)
	}

	return c.NoContent(http.StatusOK)
}

func proxySessionHandler(c echo.Context, manager sessionManager) error {
	session := manager.Session()
	if session == nil {
		return c.JSON(http.StatusNotFound, errorBody{Kind: market.KindNotFound, Message: "no proxy session"})
	}

	return c.JSON(http.StatusOK, session)
}

func proxyHistoryHandler(c echo.Context, store sessionHistorian) error {
	entries, err := store.History(c.Request().Context())
	if err != nil {
		return kindResponse(c, err)
	}

	return c.JSON(http.StatusOK, entries)
}
