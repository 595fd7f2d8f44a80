package proxy

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/stretchr/testify/assert"
)

func nodeForServer(t *testing.T, server *httptest.Server) market.ProxyNode {
	t.Helper()
	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	assert.Nil(t, err)
	port, err := strconv.Atoi(portStr)
	assert.Nil(t, err)

	node := testNode("node1")
	node.IP = host
	node.Port = port
	return node
}

func TestConfirm_ConnectedStatus(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/handshake", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "connected"}`))
	}))
	defer server.Close()

	client := NewHandshakeClient(time.Second)
	err := client.Confirm(context.Background(), nodeForServer(t, server))
	assert.Nil(err)
}

func TestConfirm_RejectedStatus(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "busy"}`))
	}))
	defer server.Close()

	client := NewHandshakeClient(time.Second)
	err := client.Confirm(context.Background(), nodeForServer(t, server))
	assert.True(market.IsKind(err, market.KindNetworkError))
}

func TestConfirm_ServerError(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHandshakeClient(time.Second)
	err := client.Confirm(context.Background(), nodeForServer(t, server))
	assert.True(market.IsKind(err, market.KindNetworkError))
}
