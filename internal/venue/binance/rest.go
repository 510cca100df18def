package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Discovery queries the Binance exchange-info endpoints for the list of
// currently tradable symbols. Best-effort: callers treat failures as "skip
// validation", per the symbol-discovery contract.
type Discovery struct {
	spotBaseURL    string
	futuresBaseURL string
	client         *http.Client
}

// NewDiscovery creates a Discovery against the given REST base URLs.
func NewDiscovery(spotBaseURL, futuresBaseURL string) *Discovery {
	return &Discovery{
		spotBaseURL:    spotBaseURL,
		futuresBaseURL: futuresBaseURL,
		client:         &http.Client{Timeout: 10 * time.Second},
	}
}

type exchangeInfo struct {
	Symbols []struct {
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

// SpotSymbols returns the canonical symbols currently trading on spot.
func (d *Discovery) SpotSymbols(ctx context.Context) ([]string, error) {
	return d.fetch(ctx, d.spotBaseURL+"/api/v3/exchangeInfo")
}

// FuturesSymbols returns the canonical symbols currently trading on the
// USDT-perpetual market.
func (d *Discovery) FuturesSymbols(ctx context.Context) ([]string, error) {
	return d.fetch(ctx, d.futuresBaseURL+"/fapi/v1/exchangeInfo")
}

func (d *Discovery) fetch(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: exchange info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("binance: exchange info status %d: %s", resp.StatusCode, string(body))
	}

	var info exchangeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("binance: decode exchange info: %w", err)
	}

	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || s.BaseAsset == "" || s.QuoteAsset == "" {
			continue
		}
		symbols = append(symbols, s.BaseAsset+"/"+s.QuoteAsset)
	}
	return symbols, nil
}
