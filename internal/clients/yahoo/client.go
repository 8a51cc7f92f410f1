// Package yahoo provides a client for the Yahoo Finance chart API
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

const (
	DefaultBaseURL    = "https://query2.finance.yahoo.com"
	DefaultTimeout    = 30 * time.Second
	DefaultRateLimit  = 5 // requests per second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second

	userAgent = "portfolio-tracker/1.0"
)

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL. An empty value keeps the default.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetry sets the attempt count and the base backoff delay. The delay
// doubles after each failed attempt.
func WithRetry(maxRetries int, delay time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if delay >= 0 {
			c.retryDelay = delay
		}
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     common.NewSilentLogger(),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Yahoo API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Temporary reports whether retrying the request may succeed
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// get performs a rate-limited GET request, retrying transport failures,
// 429 and 5xx responses with exponential backoff.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug().Str("endpoint", path).Int("attempt", attempt+1).Dur("delay", delay).Msg("Retrying Yahoo request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.do(ctx, path, params, result)
		if lastErr == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && !apiErr.Temporary() {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}

func (c *Client) do(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Yahoo API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// chartResponse is the v8 chart payload. Closes may be null for samples
// where the market did not trade.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				InstrumentType     string  `json:"instrumentType"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetChart retrieves metadata, the regular market price and the close series
// for symbol. Unknown symbols yield models.ErrUnknownTicker.
func (c *Client) GetChart(ctx context.Context, symbol string, opts ...interfaces.ChartOption) (*models.Chart, error) {
	params := &interfaces.ChartParams{
		Interval: "1d",
		Range:    "1mo",
	}
	for _, opt := range opts {
		opt(params)
	}

	urlParams := url.Values{}
	urlParams.Set("interval", params.Interval)
	if !params.From.IsZero() {
		to := params.To
		if to.IsZero() {
			to = time.Now()
		}
		urlParams.Set("period1", strconv.FormatInt(params.From.Unix(), 10))
		urlParams.Set("period2", strconv.FormatInt(to.Unix(), 10))
	} else {
		urlParams.Set("range", params.Range)
	}

	path := "/v8/finance/chart/" + url.PathEscape(symbol)

	var raw chartResponse
	if err := c.get(ctx, path, urlParams, &raw); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownTicker, symbol)
		}
		return nil, err
	}

	if raw.Chart.Error != nil {
		if raw.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownTicker, symbol)
		}
		return nil, &APIError{StatusCode: http.StatusOK, Message: raw.Chart.Error.Description, Endpoint: path}
	}
	if len(raw.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s (empty result)", models.ErrUnknownTicker, symbol)
	}

	r := raw.Chart.Result[0]
	chart := &models.Chart{
		Symbol:             r.Meta.Symbol,
		Currency:           r.Meta.Currency,
		InstrumentType:     r.Meta.InstrumentType,
		Name:               r.Meta.LongName,
		RegularMarketPrice: r.Meta.RegularMarketPrice,
	}
	if chart.Symbol == "" {
		chart.Symbol = symbol
	}
	if chart.Name == "" {
		chart.Name = r.Meta.ShortName
	}
	if r.Meta.RegularMarketTime > 0 {
		chart.RegularMarketTime = time.Unix(r.Meta.RegularMarketTime, 0).UTC()
	}

	if len(r.Indicators.Quote) > 0 {
		closes := r.Indicators.Quote[0].Close
		chart.Points = make([]models.PricePoint, 0, len(r.Timestamp))
		for i, ts := range r.Timestamp {
			if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
				continue
			}
			chart.Points = append(chart.Points, models.PricePoint{
				Time:  time.Unix(ts, 0).UTC(),
				Price: *closes[i],
			})
		}
	}

	// Fall back to the last close when the meta block carries no price, and
	// to its timestamp when only the market time is missing
	if len(chart.Points) > 0 {
		last := chart.Points[len(chart.Points)-1]
		if chart.RegularMarketPrice <= 0 {
			chart.RegularMarketPrice = last.Price
			chart.RegularMarketTime = last.Time
		} else if chart.RegularMarketTime.IsZero() {
			chart.RegularMarketTime = last.Time
		}
	}

	return chart, nil
}
