// Package alerts delivers best-effort notifications through the Telegram
// bot API. Sends are queued and rate-limited; the pipeline never blocks on
// delivery, and failures are counted rather than retried.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/observ"
)

type TelegramNotifier struct {
	cfg     config.Alerts
	http    *http.Client
	queue   chan string
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewTelegramNotifier(cfg config.Alerts) *TelegramNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		queue:   make(chan string, cfg.QueueSize),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	go n.worker()
	return n
}

// Notify enqueues a message without blocking. A full queue drops the
// message and bumps a counter.
func (n *TelegramNotifier) Notify(text string) {
	if !n.cfg.Enabled {
		return
	}
	select {
	case n.queue <- text:
	default:
		observ.NotifyDropped.Inc()
	}
}

func (n *TelegramNotifier) Close() {
	n.cancel()
}

func (n *TelegramNotifier) worker() {
	for {
		select {
		case <-n.ctx.Done():
			return
		case text := <-n.queue:
			if err := n.limiter.Wait(n.ctx); err != nil {
				return
			}
			if err := n.send(text); err != nil {
				observ.NotifyFailures.Inc()
				observ.Warn("notify_failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

func (n *TelegramNotifier) send(text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.cfg.APIBase, n.cfg.BotToken)
	body, _ := json.Marshal(map[string]any{
		"chat_id":    n.cfg.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	req, err := http.NewRequestWithContext(n.ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}
	return nil
}
