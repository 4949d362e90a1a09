package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"pricing-api/internal/models"
)

func TestMarketClientGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/market/price", r.URL.Path)
		assert.Equal(t, "EUR", r.URL.Query().Get("from"))
		assert.Equal(t, "BTC", r.URL.Query().Get("to"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","price":{"source":"EUR","target":"BTC","rate":50000}}`))
	}))
	defer server.Close()

	client := NewMarketClient(&MarketClientConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, nil)

	price, err := client.GetPrice(context.Background(), models.NewFiat("EUR"), models.NewCrypto("BTC", "Bitcoin", true))

	assert.NoError(t, err)
	assert.Equal(t, "EUR", price.Source)
	assert.Equal(t, "BTC", price.Target)
	assert.True(t, price.Rate.Equal(decimal.NewFromInt(50000)))
}

func TestMarketClientIdenticalPair(t *testing.T) {
	// No HTTP call for identical pairs.
	client := NewMarketClient(&MarketClientConfig{BaseURL: "http://unreachable"}, nil)

	price, err := client.GetPrice(context.Background(), models.NewFiat("EUR"), models.NewFiat("EUR"))

	assert.NoError(t, err)
	assert.True(t, price.Rate.Equal(decimal.NewFromInt(1)))
}

func TestMarketClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewMarketClient(&MarketClientConfig{BaseURL: server.URL}, nil)

	_, err := client.GetPrice(context.Background(), models.NewFiat("EUR"), models.NewCrypto("BTC", "Bitcoin", true))
	assert.Error(t, err)
}

func TestMarketClientInvalidRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","price":{"source":"EUR","target":"BTC","rate":0}}`))
	}))
	defer server.Close()

	client := NewMarketClient(&MarketClientConfig{BaseURL: server.URL}, nil)

	_, err := client.GetPrice(context.Background(), models.NewFiat("EUR"), models.NewCrypto("BTC", "Bitcoin", true))
	assert.Error(t, err)
}
