package bridge

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
)

// TechMetrics is the supporting bundle the execution authority's own gates
// evaluate. When the overlay is enabled most fields carry fixed values
// chosen to satisfy those gates (see config.MetricsOverlay).
type TechMetrics struct {
	ExpectedValue  float64 `json:"expected_value"`
	RRRatio        float64 `json:"rr_ratio"`
	AIConfidence   float64 `json:"ai_confidence"`
	SetupName      string  `json:"setup_name"`
	RegimeName     string  `json:"regime_name,omitempty"`
	ADX            float64 `json:"adx,omitempty"`
	Delta          float64 `json:"delta,omitempty"`
	SpreadPct      float64 `json:"bid_ask_spread_pct_underlying,omitempty"`
	LiquidityScore float64 `json:"liquidity_score,omitempty"`
	IVRank         float64 `json:"iv_rank,omitempty"`
}

// Proposal is what the authority decides on.
type Proposal struct {
	Symbol      string            `json:"symbol"`
	Mode        string            `json:"mode"` // BUY | SELL
	Confidence  float64           `json:"confidence"`
	Metadata    map[string]string `json:"metadata"`
	TechMetrics TechMetrics       `json:"tech_metrics"`
}

// Authority is the external system with the final approve/reject decision.
// Its policy is opaque to this core; we only supply inputs.
type Authority interface {
	Submit(ctx context.Context, p Proposal) (approved bool, reason string, err error)
	Halt(ctx context.Context) error
}

type HTTPAuthority struct {
	submitURL string
	haltURL   string
	apiKey    string
	source    string
	http      *http.Client
}

func NewHTTPAuthority(cfg config.Authority, apiKey, source string) *HTTPAuthority {
	return &HTTPAuthority{
		submitURL: cfg.SubmitURL,
		haltURL:   cfg.HaltURL,
		apiKey:    apiKey,
		source:    source,
		http:      &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}
}

func (a *HTTPAuthority) Submit(ctx context.Context, p Proposal) (bool, string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return false, "", fmt.Errorf("marshal proposal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.submitURL, bytes.NewReader(body))
	if err != nil {
		return false, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("x-source", a.source)

	resp, err := a.http.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("submit proposal: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	reason := gjson.GetBytes(respBody, "reason").String()
	if resp.StatusCode == http.StatusOK {
		if reason == "" {
			reason = "approved"
		}
		return true, reason, nil
	}
	if reason == "" {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return false, reason, nil
}

// Halt asks the authority to stop open activity. Best-effort: used on the
// panic path right before the process exits.
func (a *HTTPAuthority) Halt(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.haltURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", a.apiKey)
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("halt: unexpected status %d", resp.StatusCode)
	}
	return nil
}
