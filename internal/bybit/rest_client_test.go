package bybit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bybit-scalp-bot-go/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a RestClient configured to use it.
func setupTestServer(handler http.Handler) (*RestClient, *httptest.Server) {
	server := httptest.NewServer(handler)

	client := resty.New().SetBaseURL(server.URL)
	logger := zap.NewNop() // Use a no-op logger for tests

	rc := &RestClient{
		client:    client,
		apiKey:    "test_api_key",
		secretKey: "test_secret_key",
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Inf, 1), // Allow all requests in tests
	}

	return rc, server
}

func TestGetServerTime(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v5/market/time", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"timeSecond":"1688639403","timeNano":"1688639403423213947"}}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime()

		assert.NoError(t, err)
		assert.Equal(t, int64(1688639403), serverTime)
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"retCode":10002,"retMsg":"Internal error"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		serverTime, err := rc.GetServerTime()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get server time")
		assert.Equal(t, int64(0), serverTime)
	})
}

func TestGetTicker(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v5/market/tickers", r.URL.Path)
			assert.Equal(t, "linear", r.URL.Query().Get("category"))
			assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"BTCUSDT","lastPrice":"60123.50","volume24h":"12345.6"}]}}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		ticker, err := rc.GetTicker("BTCUSDT")

		assert.NoError(t, err)
		assert.Equal(t, "BTCUSDT", ticker.Symbol)
		assert.Equal(t, 60123.50, ticker.LastPrice)
	})

	t.Run("EmptyListIsUnavailable", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[]}}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetTicker("NOPEUSDT")

		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("MalformedPriceIsNotUnavailable", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"BTCUSDT","lastPrice":"garbage"}]}}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		_, err := rc.GetTicker("BTCUSDT")

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	})
}

func TestGetKlines_ReversesToOldestFirst(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/kline", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		// Bybit returns newest first.
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			["2000","101","102","100","101.5","10","1015"],
			["1000","100","101","99","101","12","1212"]
		]}}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	klines, err := rc.GetKlines("BTCUSDT", "3", 2)

	assert.NoError(t, err)
	assert.Len(t, klines, 2)
	assert.Equal(t, int64(1000), klines[0].Start)
	assert.Equal(t, 101.0, klines[0].Close)
	assert.Equal(t, int64(2000), klines[1].Start)
	assert.Equal(t, 101.5, klines[1].Close)
}

func TestPlaceOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v5/order/create", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get("X-BAPI-SIGN"))
			assert.Equal(t, "test_api_key", r.Header.Get("X-BAPI-API-KEY"))

			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "linear", body["category"])
			assert.Equal(t, "Buy", body["side"])
			assert.Equal(t, "Market", body["orderType"])
			assert.Equal(t, "0.05", body["qty"])
			assert.Equal(t, "99", body["stopLoss"])
			assert.Equal(t, "101.5", body["takeProfit"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"1321003749386327552"}}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		orderID, err := rc.PlaceOrder(&OrderRequest{
			Symbol:     "BTCUSDT",
			Side:       SideBuy,
			Qty:        0.05,
			StopLoss:   99,
			TakeProfit: 101.5,
		})

		assert.NoError(t, err)
		assert.Equal(t, "1321003749386327552", orderID)
	})

	t.Run("ExchangeRejection", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"retCode":110007,"retMsg":"insufficient available balance"}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		orderID, err := rc.PlaceOrder(&OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, Qty: 0.05})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient available balance")
		assert.Empty(t, orderID)
	})

	t.Run("ReduceOnlyFlag", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, true, body["reduceOnly"])
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"close-1"}}`))
		})

		rc, server := setupTestServer(handler)
		defer server.Close()

		orderID, err := rc.PlaceOrder(&OrderRequest{Symbol: "BTCUSDT", Side: SideSell, Qty: 0.05, ReduceOnly: true})

		assert.NoError(t, err)
		assert.Equal(t, "close-1", orderID)
	})
}

func TestSetLeverage(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/position/set-leverage", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "3", body["buyLeverage"])
		assert.Equal(t, "3", body["sellLeverage"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{}}`))
	})

	rc, server := setupTestServer(handler)
	defer server.Close()

	assert.NoError(t, rc.SetLeverage("BTCUSDT", 3))
}

func TestNewRestClient(t *testing.T) {
	t.Run("Testnet", func(t *testing.T) {
		cfg := &config.Bybit{Testnet: true, RateLimit: 10, RateLimitBurst: 5}
		rc := NewRestClient(cfg, zap.NewNop())
		assert.NotNil(t, rc)
		assert.Equal(t, cfg.ApiKey, rc.apiKey)
		assert.Equal(t, cfg.SecretKey, rc.secretKey)
	})

	t.Run("Production", func(t *testing.T) {
		cfg := &config.Bybit{Testnet: false, RateLimit: 10, RateLimitBurst: 5}
		rc := NewRestClient(cfg, zap.NewNop())
		assert.NotNil(t, rc)
	})
}
