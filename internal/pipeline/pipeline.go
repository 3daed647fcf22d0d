// Package pipeline wires the stages into the two cooperative loops: the
// ingest side (raw message -> parse -> dedup -> forward) and the execution
// side (feed poll -> panic check -> risk gate -> bridge). Each loop is a
// single logical worker; all I/O happens synchronously inside a cycle, so a
// slow call delays the next poll but never corrupts state.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aegislabs/signalbridge/internal/bridge"
	"github.com/aegislabs/signalbridge/internal/dedup"
	"github.com/aegislabs/signalbridge/internal/feed"
	"github.com/aegislabs/signalbridge/internal/observ"
	"github.com/aegislabs/signalbridge/internal/parser"
	"github.com/aegislabs/signalbridge/internal/risk"
	"github.com/aegislabs/signalbridge/internal/signal"
)

// ErrPanicHalt is returned by the run loops when the panic sentinel is
// observed. Mains treat it as fatal and exit non-zero.
var ErrPanicHalt = errors.New("panic sentinel engaged")

// MessageSource yields raw channel messages. The real messaging client
// lives outside this system; this is its interface boundary.
type MessageSource interface {
	Next(ctx context.Context) (*signal.Raw, error)
}

// SignalForwarder submits parsed payloads to the backend.
type SignalForwarder interface {
	Forward(ctx context.Context, p signal.Payload) (bool, string, error)
}

// SignalSource yields structured signals for the execution side.
type SignalSource interface {
	PollLatest(ctx context.Context) (*feed.Item, error)
	MarkProcessed(id string)
}

type IngestConfig struct {
	PollInterval  time.Duration
	MaxMessageAge time.Duration // live cutoff; zero disables
	Source        string
}

// IngestRunner is the raw-message side of the pipeline.
type IngestRunner struct {
	cfg       IngestConfig
	parser    *parser.Parser
	cache     *dedup.Cache
	forwarder SignalForwarder
	panicFlag risk.PanicStore
	source    MessageSource
}

func NewIngestRunner(cfg IngestConfig, p *parser.Parser, cache *dedup.Cache, fwd SignalForwarder, panicFlag risk.PanicStore, src MessageSource) *IngestRunner {
	return &IngestRunner{cfg: cfg, parser: p, cache: cache, forwarder: fwd, panicFlag: panicFlag, source: src}
}

func (r *IngestRunner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if r.panicFlag.Engaged() {
				observ.Warn("panic_sentinel_detected", nil)
				return ErrPanicHalt
			}
			msg, err := r.source.Next(ctx)
			if err != nil {
				observ.PollErrors.WithLabelValues("messages").Inc()
				observ.Error("message_poll_failed", err, nil)
				continue
			}
			if msg == nil {
				continue
			}
			r.Process(ctx, *msg, true)
		}
	}
}

// Process runs one message through parse -> validate -> dedup -> forward.
// Every rejection path logs the original reason for audit; nothing here
// panics on malformed input.
func (r *IngestRunner) Process(ctx context.Context, raw signal.Raw, live bool) {
	now := time.Now()

	if live && r.cfg.MaxMessageAge > 0 && !raw.ReceivedAt.IsZero() {
		if age := now.Sub(raw.ReceivedAt); age > r.cfg.MaxMessageAge {
			observ.Warn("message_too_old", map[string]any{
				"age_seconds": int(age.Seconds()),
				"raw":         truncate(raw.Text, 30),
			})
			return
		}
	}

	cand := r.parser.Parse(raw.Text)
	if cand == nil {
		observ.ChatterSkipped.Inc()
		return
	}
	if cand.Rejected() {
		observ.SignalsRejected.WithLabelValues(reasonClass(cand.Reason)).Inc()
		observ.Log("rejection_report", map[string]any{
			"raw":      truncate(raw.Text, 100),
			"decision": "REJECTED",
			"reason":   cand.Reason,
		})
		return
	}
	observ.SignalsParsed.Inc()

	if !r.cache.ShouldProcess(cand.Symbol, cand.Side, now) {
		observ.DedupSuppressed.Inc()
		observ.Log("duplicate_suppressed", map[string]any{
			"symbol": cand.Symbol,
			"side":   string(cand.Side),
		})
		return
	}

	payload := signal.NewPayload(*cand, raw, r.cfg.Source, !live, now)
	accepted, reason, err := r.forwarder.Forward(ctx, payload)
	if err != nil {
		observ.ForwardFailures.Inc()
		observ.Error("forward_failed", err, map[string]any{"symbol": cand.Symbol})
		return
	}
	decision := "ACCEPTED"
	if !accepted {
		decision = "REJECTED"
	}
	observ.Log("ingestion_report", map[string]any{
		"raw":        truncate(raw.Text, 100),
		"parsed":     cand.Symbol + " " + string(cand.Side) + " @ " + cand.Entry.String(),
		"confidence": cand.Confidence,
		"decision":   decision,
		"reason":     reason,
	})
}

// ExecRunner is the execution side of the pipeline.
type ExecRunner struct {
	interval  time.Duration
	feed      SignalSource
	gate      *risk.Gate
	bridge    *bridge.Bridge
	panicFlag risk.PanicStore
	authority bridge.Authority
}

func NewExecRunner(interval time.Duration, src SignalSource, gate *risk.Gate, br *bridge.Bridge, panicFlag risk.PanicStore, authority bridge.Authority) *ExecRunner {
	return &ExecRunner{interval: interval, feed: src, gate: gate, bridge: br, panicFlag: panicFlag, authority: authority}
}

func (r *ExecRunner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if r.haltRequested(ctx) {
				return ErrPanicHalt
			}
			item, err := r.feed.PollLatest(ctx)
			if err != nil {
				observ.PollErrors.WithLabelValues("signals").Inc()
				observ.Error("signal_poll_failed", err, nil)
				continue
			}
			if item == nil {
				continue
			}
			observ.Log("new_signal_detected", map[string]any{
				"signal_id": item.SignalID,
				"symbol":    item.Symbol,
			})
			if r.haltRequested(ctx) {
				return ErrPanicHalt
			}
			r.ProcessItem(ctx, *item)
			r.feed.MarkProcessed(item.SignalID)
		}
	}
}

// ProcessItem gates one feed item and hands it to the bridge.
func (r *ExecRunner) ProcessItem(ctx context.Context, item feed.Item) {
	now := time.Now()
	cand := item.Candidate()

	ok, reason := r.gate.Authorize(cand, now)
	if !ok {
		observ.GateBlocked.WithLabelValues(risk.GateName(reason)).Inc()
		observ.Warn("gate_blocked", map[string]any{
			"symbol": cand.Symbol,
			"reason": reason,
		})
		return
	}

	observ.Log("proposing_signal", map[string]any{
		"symbol":     cand.Symbol,
		"side":       string(cand.Side),
		"entry":      cand.Entry.String(),
		"total_risk": r.gate.TotalRisk(cand).String(),
	})
	r.bridge.Submit(ctx, cand, item.SignalID, now)
}

// haltRequested checks the panic flag; on the first true it asks the
// authority to halt open activity. This is a cooperative checkpoint, not a
// preemptive interrupt.
func (r *ExecRunner) haltRequested(ctx context.Context) bool {
	if !r.panicFlag.Engaged() {
		return false
	}
	observ.Warn("panic_sentinel_detected", nil)
	if err := r.authority.Halt(ctx); err != nil {
		observ.Error("authority_halt_failed", err, nil)
	}
	return true
}

// reasonClass collapses free-form rejection reasons into a bounded metric
// label set.
func reasonClass(reason string) string {
	switch {
	case strings.HasPrefix(reason, "no valid targets"):
		return "no_targets"
	case strings.HasPrefix(reason, "no stoploss"):
		return "no_stoploss"
	case strings.HasPrefix(reason, "no entry"):
		return "no_entry"
	case strings.HasPrefix(reason, "sl "):
		return "sl_vs_entry"
	case strings.HasPrefix(reason, "entry "):
		return "entry_vs_target"
	default:
		return "other"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
