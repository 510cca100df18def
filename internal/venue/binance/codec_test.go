package binance

import (
	"encoding/json"
	"testing"

	"github.com/alanyoungcy/spreadwatch/internal/domain"
)

func TestSubscribeFrames(t *testing.T) {
	c := NewSpotCodec("wss://example/ws")
	frames, err := c.SubscribeFrames([]string{"BTC/USDT", "ETH/USDT"})
	if err != nil {
		t.Fatalf("SubscribeFrames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 combined frame", len(frames))
	}

	var req struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
		ID     int      `json:"id"`
	}
	if err := json.Unmarshal(frames[0], &req); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if req.Method != "SUBSCRIBE" {
		t.Errorf("method = %q, want SUBSCRIBE", req.Method)
	}
	want := []string{"btcusdt@bookTicker", "ethusdt@bookTicker"}
	if len(req.Params) != len(want) {
		t.Fatalf("params = %v, want %v", req.Params, want)
	}
	for i := range want {
		if req.Params[i] != want[i] {
			t.Errorf("params[%d] = %q, want %q", i, req.Params[i], want[i])
		}
	}
}

func TestSubscribeFramesEmpty(t *testing.T) {
	frames, err := NewSpotCodec("").SubscribeFrames(nil)
	if err != nil || frames != nil {
		t.Errorf("SubscribeFrames(nil) = (%v, %v), want (nil, nil)", frames, err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantOK  bool
		wantErr bool
		symbol  string
	}{
		{
			name:   "spot book ticker",
			raw:    `{"u":400900217,"s":"BTCUSDT","b":"99.99","B":"31.21","a":"100.01","A":"40.66"}`,
			wantOK: true,
			symbol: "BTC/USDT",
		},
		{
			name:   "futures book ticker with event type",
			raw:    `{"e":"bookTicker","u":400900218,"s":"ETHUSDT","b":"1999","B":"10","a":"2001","A":"5"}`,
			wantOK: true,
			symbol: "ETH/USDT",
		},
		{
			name:   "subscribe ack",
			raw:    `{"result":null,"id":1}`,
			wantOK: false,
		},
		{
			name:   "other event type",
			raw:    `{"e":"aggTrade","s":"BTCUSDT"}`,
			wantOK: false,
		},
		{
			name:    "missing symbol",
			raw:     `{"b":"99.99","a":"100.01"}`,
			wantErr: true,
		},
		{
			name:    "unknown quote asset",
			raw:     `{"s":"BTCXYZ","b":"99.99","a":"100.01"}`,
			wantErr: true,
		},
		{
			name:    "unparsable price",
			raw:     `{"s":"BTCUSDT","b":"abc","a":"100.01"}`,
			wantErr: true,
		},
		{
			name:    "zero price",
			raw:     `{"s":"BTCUSDT","b":"0","a":"100.01"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `garbage`,
			wantErr: true,
		},
	}

	c := NewSpotCodec("wss://example/ws")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok, err := c.Parse([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if q.Symbol != tt.symbol {
				t.Errorf("symbol = %q, want %q", q.Symbol, tt.symbol)
			}
			if q.Venue != "binance" {
				t.Errorf("venue = %q, want binance", q.Venue)
			}
			if !q.Valid() {
				t.Error("parsed quote is not valid")
			}
		})
	}
}

func TestMarketTypes(t *testing.T) {
	if mt := NewSpotCodec("").MarketType(); mt != domain.MarketSpot {
		t.Errorf("spot codec market type = %s", mt)
	}
	if mt := NewFuturesCodec("").MarketType(); mt != domain.MarketFutures {
		t.Errorf("futures codec market type = %s", mt)
	}
}

func TestPingFrame(t *testing.T) {
	if _, ok := NewSpotCodec("").PingFrame(); ok {
		t.Error("binance should use protocol-level pings, not an app frame")
	}
}
