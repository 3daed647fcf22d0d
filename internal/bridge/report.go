package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aegislabs/signalbridge/internal/config"
)

// Reporter posts execution outcomes to the training/feedback endpoint.
// Calls are best-effort and retry-less, but failures are surfaced to the
// caller instead of being swallowed.
type Reporter interface {
	Report(ctx context.Context, signalID string, execution map[string]any, status string) error
}

type HTTPReporter struct {
	url    string
	apiKey string
	source string
	http   *http.Client
}

func NewHTTPReporter(cfg config.Feedback, apiKey, source string) *HTTPReporter {
	return &HTTPReporter{
		url:    cfg.URL,
		apiKey: apiKey,
		source: source,
		http:   &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}
}

func (r *HTTPReporter) Report(ctx context.Context, signalID string, execution map[string]any, status string) error {
	body, err := json.Marshal(map[string]any{
		"signal_id": signalID,
		"execution": execution,
		"status":    status,
	})
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", r.apiKey)
	req.Header.Set("x-source", r.source)

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("report outcome: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("report outcome: unexpected status %d", resp.StatusCode)
	}
	return nil
}
