package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpclient "github.com/alphalab-research/alphalab/internal/platform/http"
	"github.com/alphalab-research/alphalab/models"
)

// pageLimit is the maximum number of aggregates Polygon returns per page.
const pageLimit = 50000

// Client is the Polygon.io aggregates API client
type Client struct {
	apiKey     string
	baseURL    string
	adjusted   bool
	httpClient *httpclient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Polygon client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	Adjusted        bool
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryElapsed time.Duration
}

// NewClient creates a new Polygon API client
func NewClient(options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = "https://api.polygon.io"
	}

	httpOpts := httpclient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetryElapsed: options.MaxRetryElapsed,
	}

	return &Client{
		apiKey:     options.APIKey,
		baseURL:    options.BaseURL,
		adjusted:   options.Adjusted,
		httpClient: httpclient.NewClient(httpOpts),
		logger:     log.With().Str("component", "polygon_client").Logger(),
	}
}

// aggsResponse is one page of the v2 aggregates endpoint
type aggsResponse struct {
	Ticker       string      `json:"ticker"`
	ResultsCount int         `json:"resultsCount"`
	Results      []aggResult `json:"results"`
	Status       string      `json:"status"`
	ErrorMsg     string      `json:"error"`
	NextURL      string      `json:"next_url"`
}

type aggResult struct {
	Timestamp int64   `json:"t"` // window start, Unix milliseconds
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	VWAP      float64 `json:"vw"`
	Trades    int64   `json:"n"`
}

// Aggregates fetches all 1-minute bars for a ticker in [from, to], following
// next_url pagination until the range is exhausted. Bars come back sorted
// ascending with duplicate timestamps removed.
func (c *Client) Aggregates(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	url := fmt.Sprintf(
		"%s/v2/aggs/ticker/%s/range/1/minute/%s/%s?adjusted=%t&sort=asc&limit=%d",
		c.baseURL,
		ticker,
		from.Format("2006-01-02"),
		to.Format("2006-01-02"),
		c.adjusted,
		pageLimit,
	)

	var bars []models.Bar
	pages := 0

	for url != "" {
		page, err := c.fetchPage(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetching aggregates for %s: %w", ticker, err)
		}
		pages++

		for _, r := range page.Results {
			bars = append(bars, models.Bar{
				Time:   time.UnixMilli(r.Timestamp).UTC(),
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
				VWAP:   r.VWAP,
				Trades: r.Trades,
			})
		}

		url = page.NextURL
	}

	// Sort bars by time (oldest first for proper calculations). Stable so
	// the earlier page wins when pagination overlaps on a timestamp.
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	bars = dedupeBars(bars)

	c.logger.Debug().
		Str("ticker", ticker).
		Int("bars", len(bars)).
		Int("pages", pages).
		Msg("Fetched aggregates")

	return bars, nil
}

func (c *Client) fetchPage(ctx context.Context, url string) (*aggsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	// The key travels in a header so next_url can be followed verbatim.
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var page aggsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		c.logger.Error().Err(err).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	if page.Status == "ERROR" {
		c.logger.Error().Str("error", page.ErrorMsg).Msg("Polygon API error")
		return nil, fmt.Errorf("polygon API error: %s", page.ErrorMsg)
	}

	return &page, nil
}

// dedupeBars drops repeated timestamps from a sorted slice, keeping the first.
func dedupeBars(bars []models.Bar) []models.Bar {
	if len(bars) < 2 {
		return bars
	}

	out := bars[:1]
	for _, b := range bars[1:] {
		if b.Time.Equal(out[len(out)-1].Time) {
			continue
		}
		out = append(out, b)
	}
	return out
}
