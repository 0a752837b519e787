package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bybit-scalp-bot-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	baseURL        = "https://api.bybit.com"
	testnetBaseURL = "https://api-testnet.bybit.com"
	recvWindow     = "5000" // How long a request is valid in milliseconds

	// Linear USDT-perpetual contracts only.
	category = "linear"

	OrderTypeMarket = "Market"
	SideBuy         = "Buy"
	SideSell        = "Sell"
)

// ErrUnavailable marks market data that could not be obtained this cycle.
// Callers treat it as transient and retry on the next pass, as opposed to
// a malformed response which is an ordinary error.
var ErrUnavailable = errors.New("market data unavailable")

// Ticker is the subset of the Bybit ticker snapshot the bot consumes.
type Ticker struct {
	Symbol    string
	LastPrice float64
	Volume24h float64
}

// Kline is one OHLCV candle, oldest timestamp first when returned in a slice.
type Kline struct {
	Start  int64 // unix milliseconds
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// OrderRequest describes one order submission.
type OrderRequest struct {
	Symbol     string
	Side       string // SideBuy or SideSell
	Qty        float64
	StopLoss   float64 // 0 means none
	TakeProfit float64 // 0 means none
	ReduceOnly bool
}

// RestClientInterface defines the interface for the Bybit REST API client.
type RestClientInterface interface {
	GetServerTime() (int64, error)
	GetTicker(symbol string) (*Ticker, error)
	GetKlines(symbol, interval string, limit int) ([]Kline, error)
	PlaceOrder(req *OrderRequest) (string, error)
	SetLeverage(symbol string, leverage int) error
	GetWalletBalance() (float64, error)
}

// RestClient is a client for the Bybit v5 REST API.
// It implements the RestClientInterface.
type RestClient struct {
	client    *resty.Client
	apiKey    string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Bybit REST API client.
func NewRestClient(cfg *config.Bybit, logger *zap.Logger) *RestClient {
	var url string
	if cfg.Testnet {
		url = testnetBaseURL
		logger.Warn("Using Bybit Testnet")
	} else {
		url = baseURL
		logger.Info("Using Bybit Production API")
	}

	client := resty.New().SetBaseURL(url)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   limiter,
	}
}

// apiResponse is the envelope every v5 endpoint returns.
type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// sign creates the HMAC-SHA256 signature Bybit expects:
// HMAC(secret, timestamp + apiKey + recvWindow + payload).
func (c *RestClient) sign(timestamp, payload string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(timestamp + c.apiKey + recvWindow + payload))
	return hex.EncodeToString(h.Sum(nil))
}

// authHeaders attaches the v5 authentication headers. payload is the query
// string for GET requests and the JSON body for POST requests.
func (c *RestClient) authHeaders(req *resty.Request, payload string) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.SetHeader("X-BAPI-API-KEY", c.apiKey)
	req.SetHeader("X-BAPI-TIMESTAMP", timestamp)
	req.SetHeader("X-BAPI-RECV-WINDOW", recvWindow)
	req.SetHeader("X-BAPI-SIGN", c.sign(timestamp, payload))
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*apiResponse, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			var body apiResponse
			if jsonErr := json.Unmarshal(resp.Body(), &body); jsonErr != nil {
				return nil, fmt.Errorf("malformed response body: %w", jsonErr)
			}
			if body.RetCode != 0 {
				return nil, fmt.Errorf("api error %d: %s", body.RetCode, body.RetMsg)
			}
			return &body, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetServerTime fetches the current server time.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime() (int64, error) {
	resp, err := c.doRequest(context.Background(), "GET", "/v5/market/time", c.client.R())
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	var result struct {
		TimeSecond string `json:"timeSecond"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return 0, fmt.Errorf("failed to parse server time: %w", err)
	}
	seconds, err := strconv.ParseInt(result.TimeSecond, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse server time %q: %w", result.TimeSecond, err)
	}
	return seconds, nil
}

// GetTicker fetches the latest ticker snapshot for one symbol. A missing or
// empty snapshot is reported as ErrUnavailable so the caller can retry next
// cycle instead of treating it as a hard failure.
func (c *RestClient) GetTicker(symbol string) (*Ticker, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", symbol)

	req := c.client.R().SetQueryParamsFromValues(params)

	resp, err := c.doRequest(context.Background(), "GET", "/v5/market/tickers", req)
	if err != nil {
		return nil, fmt.Errorf("ticker for %s: %w: %w", symbol, ErrUnavailable, err)
	}

	var result struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Volume24h string `json:"volume24h"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ticker response for %s: %w", symbol, err)
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("no ticker returned for %s: %w", symbol, ErrUnavailable)
	}

	t := result.List[0]
	lastPrice, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last price %q for %s: %w", t.LastPrice, symbol, err)
	}
	volume, _ := strconv.ParseFloat(t.Volume24h, 64)

	return &Ticker{Symbol: t.Symbol, LastPrice: lastPrice, Volume24h: volume}, nil
}

// GetKlines fetches up to limit recent candles for the symbol. Bybit returns
// them newest first; the slice is reversed so callers see oldest first.
func (c *RestClient) GetKlines(symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	req := c.client.R().SetQueryParamsFromValues(params)

	resp, err := c.doRequest(context.Background(), "GET", "/v5/market/kline", req)
	if err != nil {
		return nil, fmt.Errorf("klines for %s: %w: %w", symbol, ErrUnavailable, err)
	}

	var result struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse kline response for %s: %w", symbol, err)
	}

	klines := make([]Kline, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		row := result.List[i]
		// [startTime, open, high, low, close, volume, turnover]
		if len(row) < 6 {
			return nil, fmt.Errorf("malformed kline row for %s: %v", symbol, row)
		}
		start, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed kline start for %s: %w", symbol, err)
		}
		var values [5]float64
		for j := 0; j < 5; j++ {
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("malformed kline value for %s: %w", symbol, err)
			}
			values[j] = v
		}
		klines = append(klines, Kline{
			Start:  start,
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4],
		})
	}

	return klines, nil
}

// PlaceOrder submits a market order and returns the exchange order id.
func (c *RestClient) PlaceOrder(order *OrderRequest) (string, error) {
	body := map[string]interface{}{
		"category":  category,
		"symbol":    order.Symbol,
		"side":      order.Side,
		"orderType": OrderTypeMarket,
		"qty":       strconv.FormatFloat(order.Qty, 'f', -1, 64),
	}
	if order.StopLoss > 0 {
		body["stopLoss"] = strconv.FormatFloat(order.StopLoss, 'f', -1, 64)
	}
	if order.TakeProfit > 0 {
		body["takeProfit"] = strconv.FormatFloat(order.TakeProfit, 'f', -1, 64)
	}
	if order.ReduceOnly {
		body["reduceOnly"] = true
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode order: %w", err)
	}

	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	c.authHeaders(req, string(payload))

	resp, err := c.doRequest(context.Background(), "POST", "/v5/order/create", req)
	if err != nil {
		c.logger.Error("Failed to create order after multiple attempts",
			zap.Error(err),
			zap.String("symbol", order.Symbol),
		)
		return "", fmt.Errorf("failed to create order: %w", err)
	}

	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return "", fmt.Errorf("failed to parse order response: %w", err)
	}
	if result.OrderID == "" {
		return "", fmt.Errorf("order accepted without an order id for %s", order.Symbol)
	}

	c.logger.Info("Successfully created order",
		zap.String("symbol", order.Symbol),
		zap.String("side", order.Side),
		zap.String("order_id", result.OrderID),
	)
	return result.OrderID, nil
}

// SetLeverage sets both buy and sell leverage for a symbol.
func (c *RestClient) SetLeverage(symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	body := map[string]interface{}{
		"category":     category,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode leverage request: %w", err)
	}

	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload)
	c.authHeaders(req, string(payload))

	if _, err := c.doRequest(context.Background(), "POST", "/v5/position/set-leverage", req); err != nil {
		return fmt.Errorf("failed to set leverage for %s: %w", symbol, err)
	}
	return nil
}

// GetWalletBalance returns the total equity of the unified account in USD.
func (c *RestClient) GetWalletBalance() (float64, error) {
	params := url.Values{}
	params.Set("accountType", "UNIFIED")

	// The signature covers the exact query string, so it is appended to the
	// URL rather than handed to resty to re-encode.
	req := c.client.R()
	c.authHeaders(req, params.Encode())

	resp, err := c.doRequest(context.Background(), "GET", "/v5/account/wallet-balance?"+params.Encode(), req)
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet balance: %w", err)
	}

	var result struct {
		List []struct {
			TotalEquity string `json:"totalEquity"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return 0, fmt.Errorf("failed to parse wallet balance: %w", err)
	}
	if len(result.List) == 0 {
		return 0, fmt.Errorf("wallet balance response had no accounts")
	}
	equity, err := strconv.ParseFloat(result.List[0].TotalEquity, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse total equity %q: %w", result.List[0].TotalEquity, err)
	}
	return equity, nil
}
