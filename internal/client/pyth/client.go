package pyth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://hermes.pyth.network"
	}
	host = strings.TrimRight(host, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

type rawPriceFeed struct {
	ID    string `json:"id"`
	Price struct {
		Price       string `json:"price"`
		Expo        int32  `json:"expo"`
		PublishTime int64  `json:"publish_time"`
	} `json:"price"`
}

type latestResponse struct {
	Parsed []rawPriceFeed `json:"parsed"`
}

// PriceFeed is one parsed latest price observation. Price carries the raw
// integer mantissa scaled by 10^Expo.
type PriceFeed struct {
	ID          string
	Price       decimal.Decimal
	Expo        int32
	PublishTime time.Time
}

func parseFeed(raw rawPriceFeed) (PriceFeed, error) {
	mantissa, err := decimal.NewFromString(raw.Price.Price)
	if err != nil {
		return PriceFeed{}, fmt.Errorf("bad price %q: %w", raw.Price.Price, err)
	}
	return PriceFeed{
		ID:          raw.ID,
		Price:       mantissa.Shift(raw.Price.Expo),
		Expo:        raw.Price.Expo,
		PublishTime: time.Unix(raw.Price.PublishTime, 0).UTC(),
	}, nil
}

// LatestUpdate fetches the most recent published price for one feed id.
func (c *Client) LatestUpdate(ctx context.Context, feedID string) (*PriceFeed, error) {
	if strings.TrimSpace(feedID) == "" {
		return nil, fmt.Errorf("feed id is required")
	}
	query := url.Values{}
	query.Add("ids[]", feedID)
	body, err := c.doRequest(ctx, "/v2/updates/price/latest", query)
	if err != nil {
		return nil, err
	}
	var resp latestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(resp.Parsed) == 0 {
		return nil, fmt.Errorf("no price returned for feed %s", feedID)
	}
	feed, err := parseFeed(resp.Parsed[0])
	if err != nil {
		return nil, err
	}
	return &feed, nil
}
