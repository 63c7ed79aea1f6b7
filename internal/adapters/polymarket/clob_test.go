package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/polyslip/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyslip/internal/analyzer"
	"github.com/alejandrodnm/polyslip/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchOrderBook_Success(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/clob_book.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, "token_yes_001", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	client := polymarket.NewClient(srv.URL)
	raw, err := client.FetchOrderBook(context.Background(), "token_yes_001")
	require.NoError(t, err)

	assert.Equal(t, "token_yes_001", raw.TokenID)
	require.Len(t, raw.Bids, 3)
	require.Len(t, raw.Asks, 3)
	// El adapter no reordena: el orden es el de la API
	assert.Equal(t, domain.RawLevel{Price: "0.48", Size: "30"}, raw.Bids[0])
	assert.Equal(t, domain.RawLevel{Price: "0.53", Size: "40"}, raw.Asks[0])
	assert.Equal(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), raw.Timestamp)

	// Y el resultado es normalizable
	book, err := analyzer.NormalizeRaw(raw)
	require.NoError(t, err)
	assert.Equal(t, "0.5", book.BestBid().String())
	assert.Equal(t, "0.51", book.BestAsk().String())
}

func TestFetchOrderBook_MissingTimestampUsesReceiptTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bids":[{"price":"0.5","size":"1"}],"asks":[{"price":"0.6","size":"1"}]}`))
	}))
	defer srv.Close()

	before := time.Now().Add(-time.Second)
	raw, err := polymarket.NewClient(srv.URL).FetchOrderBook(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, "tok", raw.TokenID, "sin asset_id se usa el token pedido")
	assert.True(t, raw.Timestamp.After(before))
}

func TestFetchOrderBook_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"asset_id":"tok","bids":[],"asks":[]}`))
	}))
	defer srv.Close()

	raw, err := polymarket.NewClient(srv.URL).FetchOrderBook(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, raw.Bids)
}

func TestFetchOrderBook_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"No orderbook exists for the requested token id"}`))
	}))
	defer srv.Close()

	_, err := polymarket.NewClient(srv.URL).FetchOrderBook(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "clob.FetchOrderBook")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchOrderBook_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := polymarket.NewClient(srv.URL).FetchOrderBook(ctx, "tok")
	assert.Error(t, err)
}

func TestLastTradePriceAndMidpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/last-trade-price":
			w.Write([]byte(`{"price":"0.52","side":"BUY"}`))
		case "/midpoint":
			w.Write([]byte(`{"mid":"0.505"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := polymarket.NewClient(srv.URL)

	last, err := client.LastTradePrice(context.Background(), "tok")
	require.NoError(t, err)
	assert.InDelta(t, 0.52, last, 1e-9)

	mid, err := client.Midpoint(context.Background(), "tok")
	require.NoError(t, err)
	assert.InDelta(t, 0.505, mid, 1e-9)
}

func TestMidpoint_BadNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mid":"n/a"}`))
	}))
	defer srv.Close()

	_, err := polymarket.NewClient(srv.URL).Midpoint(context.Background(), "tok")
	assert.Error(t, err)
}
