package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

// Discovery queries the Bybit v5 instruments-info endpoint for the list of
// currently tradable symbols. Best-effort, same contract as the Binance
// discovery.
type Discovery struct {
	baseURL string
	client  *http.Client
}

// NewDiscovery creates a Discovery against the given REST base URL.
func NewDiscovery(baseURL string) *Discovery {
	return &Discovery{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type instrumentsResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Status    string `json:"status"`
			BaseCoin  string `json:"baseCoin"`
			QuoteCoin string `json:"quoteCoin"`
		} `json:"list"`
	} `json:"result"`
}

// Symbols returns the canonical symbols currently trading for the given
// market type ("spot" or "linear" category on the wire).
func (d *Discovery) Symbols(ctx context.Context, mt domain.MarketType) ([]string, error) {
	category := "spot"
	if mt == domain.MarketFutures {
		category = "linear"
	}
	url := fmt.Sprintf("%s/v5/market/instruments-info?category=%s&limit=1000", d.baseURL, category)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bybit: create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bybit: instruments info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bybit: instruments info status %d: %s", resp.StatusCode, string(body))
	}

	var parsed instrumentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("bybit: decode instruments info: %w", err)
	}
	if parsed.RetCode != 0 {
		return nil, fmt.Errorf("bybit: instruments info retCode %d: %s", parsed.RetCode, parsed.RetMsg)
	}

	symbols := make([]string, 0, len(parsed.Result.List))
	for _, inst := range parsed.Result.List {
		if inst.Status != "Trading" || inst.BaseCoin == "" || inst.QuoteCoin == "" {
			continue
		}
		symbols = append(symbols, inst.BaseCoin+"/"+inst.QuoteCoin)
	}
	return symbols, nil
}
