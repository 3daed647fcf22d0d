// Package feed polls the local backend for work: the structured signal feed
// consumed by the execution bridge, and the raw message feed consumed by the
// ingest pipeline. Both consult only the most recent item per cycle and use
// id-change detection to avoid reprocessing.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/signal"
)

// Item is one structured signal from the feed endpoint.
type Item struct {
	SignalID   string         `json:"signal_id"`
	Symbol     string         `json:"symbol"`
	Side       signal.Side    `json:"side"`
	EntryPrice signal.Price   `json:"entry_price"`
	StopLoss   signal.Price   `json:"stop_loss"`
	Targets    []signal.Price `json:"targets"`
	Confidence int            `json:"confidence"`
}

// Candidate converts a feed item to the shape the gate chain works on.
func (it Item) Candidate() signal.Candidate {
	targets := make([]decimal.Decimal, 0, len(it.Targets))
	for _, t := range it.Targets {
		targets = append(targets, t.Decimal)
	}
	return signal.Candidate{
		Symbol:     it.Symbol,
		Side:       it.Side,
		Entry:      it.EntryPrice.Decimal,
		StopLoss:   it.StopLoss.Decimal,
		Targets:    targets,
		Confidence: it.Confidence,
		Status:     signal.StatusParsed,
	}
}

// Client polls the structured signal feed.
type Client struct {
	url    string
	http   *http.Client
	lastID string
}

func NewClient(cfg config.Feed) *Client {
	return &Client{
		url:  cfg.BaseURL + cfg.SignalsPath,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}
}

// PollLatest fetches the feed and returns the newest signal if its id
// differs from the last processed one, nil otherwise.
func (c *Client) PollLatest(ctx context.Context) (*Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll signals: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll signals: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var out struct {
		Data []Item `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	latest := out.Data[0]
	if latest.SignalID == c.lastID {
		return nil, nil
	}
	return &latest, nil
}

// MarkProcessed records the id after the caller finished with the item, so
// a failed processing attempt is retried on the next cycle.
func (c *Client) MarkProcessed(id string) { c.lastID = id }

// MessageClient polls the raw message feed. It stands in for the messaging
// channel client, which is outside this system's boundary.
type MessageClient struct {
	url    string
	http   *http.Client
	lastID string
}

func NewMessageClient(cfg config.Feed) *MessageClient {
	return &MessageClient{
		url:  cfg.BaseURL + cfg.MessagesPath,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}
}

// Next returns the newest unseen raw message, or nil when there is nothing
// new.
func (c *MessageClient) Next(ctx context.Context) (*signal.Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll messages: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll messages: unexpected status %d", resp.StatusCode)
	}
	var out struct {
		ID         string    `json:"id"`
		Text       string    `json:"text"`
		ReceivedAt time.Time `json:"received_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if out.ID == "" || out.ID == c.lastID {
		return nil, nil
	}
	c.lastID = out.ID
	return &signal.Raw{ID: out.ID, Text: out.Text, ReceivedAt: out.ReceivedAt}, nil
}
