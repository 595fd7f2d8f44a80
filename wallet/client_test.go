package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/louisf098/Otternet-Team-Otter-sub000/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBalance(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/getbalance/alice", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"balance": "12.5"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
	balance, err := client.Balance(context.Background(), "alice")
	assert.Nil(err)
	assert.Equal("12.5", balance.String())
}

func TestBalance_SendsBasicAuth(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(ok)
		assert.Equal("rpcuser", user)
		assert.Equal("rpcpass", pass)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"balance": "0"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second, Username: "rpcuser", Password: "rpcpass"})
	_, err := client.Balance(context.Background(), "alice")
	assert.Nil(err)
}

func TestNewAddress_WithLabel(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/newaddress/alice/settlement", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"address": "addr1"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
	address, err := client.NewAddress(context.Background(), "alice", "settlement")
	assert.Nil(err)
	assert.Equal("addr1", address)
}

func TestTransfer_ReturnsPaymentRecord(t *testing.T) {
	assert := assert.New(t)
	var got transferRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/transfer", r.URL.Path)
		err := json.NewDecoder(r.Body).Decode(&got)
		assert.Nil(err)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"settledAt": "2024-05-01T12:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
	record, err := client.Transfer(context.Background(), "alice", "addr1", decimal.NewFromInt(3), "abc123")
	assert.Nil(err)
	assert.Equal("alice", got.From)
	assert.Equal("addr1", got.To)
	assert.Equal("3", got.Amount.String())
	assert.Equal("abc123", got.Memo)
	assert.Equal("alice", record.From)
	assert.Equal("addr1", record.To)
	assert.Equal("3", record.Amount.String())
	assert.Equal("abc123", record.Memo)
	assert.Equal(2024, record.SettledAt.Year())
}

func TestTransfer_RejectionIsPaymentError(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second})
	record, err := client.Transfer(context.Background(), "alice", "addr1", decimal.NewFromInt(3), "abc123")
	assert.Nil(record)
	assert.True(market.IsKind(err, market.KindPaymentError))
}

func TestTransfer_TimeoutStaysTimeout(t *testing.T) {
	assert := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	record, err := client.Transfer(context.Background(), "alice", "addr1", decimal.NewFromInt(3), "abc123")
	assert.Nil(record)
	assert.True(market.IsKind(err, market.KindTimeout))
}
