package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
}

func TestRequireKey(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		path       string
		header     map[string]string
		wantStatus int
	}{
		{
			name:       "no key configured passes everything",
			key:        "",
			path:       "/api/connectors",
			wantStatus: http.StatusOK,
		},
		{
			name:       "public path needs no key",
			key:        "secret",
			path:       "/api/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key rejected",
			key:        "secret",
			path:       "/api/connectors",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key rejected",
			key:        "secret",
			path:       "/api/connectors",
			header:     map[string]string{"X-API-Key": "nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "x-api-key accepted",
			key:        "secret",
			path:       "/api/connectors",
			header:     map[string]string{"X-API-Key": "secret"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bearer token accepted",
			key:        "secret",
			path:       "/api/connectors",
			header:     map[string]string{"Authorization": "Bearer secret"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireKey(tt.key, "/api/health")(okHandler())
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestAccessLogCapturesStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/spreads/history?symbol=BTC/USDT", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var line struct {
		Level  string `json:"level"`
		Msg    string `json:"msg"`
		Status int    `json:"status"`
		Bytes  int64  `json:"bytes"`
		Query  string `json:"query"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line.Msg != "request" || line.Status != http.StatusNotFound {
		t.Errorf("logged %s status=%d, want request status=404", line.Msg, line.Status)
	}
	if line.Bytes != int64(len("missing")) {
		t.Errorf("bytes = %d, want %d", line.Bytes, len("missing"))
	}
	if line.Query != "symbol=BTC/USDT" {
		t.Errorf("query = %q", line.Query)
	}
	if line.Level != "INFO" {
		t.Errorf("level = %q, want INFO for a 4xx", line.Level)
	}
}

func TestAccessLogEscalatesServerErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/connectors", nil))

	var line struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line.Level != "ERROR" {
		t.Errorf("level = %q, want ERROR for a 5xx", line.Level)
	}
}
