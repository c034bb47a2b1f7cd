// Package rates polls the public Binance P2P book for a reference USDT/RUB
// rate. The rate is advisory only; offers always carry their own rate.
package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultEndpoint = "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search"

// topAds is how many of the best asks are averaged into the quote.
const topAds = 5

type Client struct {
	http     *http.Client
	endpoint string
}

func NewClient() *Client {
	return &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		endpoint: defaultEndpoint,
	}
}

// NewClientWithEndpoint is used by tests to point at a stub server.
func NewClientWithEndpoint(endpoint string) *Client {
	c := NewClient()
	c.endpoint = endpoint
	return c
}

type searchRequest struct {
	Asset         string `json:"asset"`
	Fiat          string `json:"fiat"`
	MerchantCheck bool   `json:"merchantCheck"`
	Page          int    `json:"page"`
	Rows          int    `json:"rows"`
	TradeType     string `json:"tradeType"`
}

type searchResponse struct {
	Data []struct {
		Adv struct {
			Price string `json:"price"`
		} `json:"adv"`
	} `json:"data"`
}

// Current returns the average of the top merchant asks, rounded to kopecks.
func (c *Client) Current(ctx context.Context) (float64, error) {
	payload, err := json.Marshal(searchRequest{
		Asset:         "USDT",
		Fiat:          "RUB",
		MerchantCheck: true,
		Page:          1,
		Rows:          10,
		TradeType:     "BUY",
	})
	if err != nil {
		return 0, fmt.Errorf("marshal rate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch rate: unexpected status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode rate response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return 0, fmt.Errorf("rate feed returned no ads")
	}

	n := len(parsed.Data)
	if n > topAds {
		n = topAds
	}
	var sum float64
	for _, ad := range parsed.Data[:n] {
		var price float64
		if _, err := fmt.Sscanf(ad.Adv.Price, "%f", &price); err != nil {
			return 0, fmt.Errorf("parse price %q: %w", ad.Adv.Price, err)
		}
		sum += price
	}
	avg := sum / float64(n)
	return float64(int(avg*100+0.5)) / 100, nil
}
