// Package ingest forwards parsed signals to the backend ingest endpoint.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/signal"
)

// Forwarder POSTs ingest payloads. A 200 means accepted; any other status
// is a rejection whose body may carry a reason.
type Forwarder struct {
	url    string
	apiKey string
	source string
	http   *http.Client
}

func NewForwarder(cfg config.Ingest, apiKey, source string) *Forwarder {
	return &Forwarder{
		url:    cfg.URL,
		apiKey: apiKey,
		source: source,
		http:   &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}
}

// Forward submits one payload. The bool result is the backend's decision;
// err is set only for transport-level failures.
func (f *Forwarder) Forward(ctx context.Context, p signal.Payload) (bool, string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return false, "", fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return false, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", f.apiKey)
	req.Header.Set("x-source", f.source)

	resp, err := f.http.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("forward signal: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusOK {
		return true, "", nil
	}
	reason := gjson.GetBytes(respBody, "reason").String()
	if reason == "" {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return false, reason, nil
}
