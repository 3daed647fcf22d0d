// Package bridge assembles execution proposals from gated signals, submits
// them to the external execution authority, and reports outcomes to the
// feedback endpoint.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/observ"
	"github.com/aegislabs/signalbridge/internal/risk"
	"github.com/aegislabs/signalbridge/internal/signal"
)

const (
	StatusExecutedPaper    = "EXECUTED_PAPER"
	StatusRejectedByKernel = "REJECTED_BY_KERNEL"
)

// Notifier delivers a human-readable alert. Implementations must not block
// the pipeline; failures are counted, not returned.
type Notifier interface {
	Notify(text string)
}

type Bridge struct {
	cfg       config.Bridge
	lotSize   int64
	authority Authority
	reporter  Reporter
	notifier  Notifier
	counter   risk.CounterStore
	loc       *time.Location
}

func New(cfg config.Bridge, lotSize int64, authority Authority, reporter Reporter, notifier Notifier, counter risk.CounterStore, loc *time.Location) *Bridge {
	return &Bridge{
		cfg:       cfg,
		lotSize:   lotSize,
		authority: authority,
		reporter:  reporter,
		notifier:  notifier,
		counter:   counter,
		loc:       loc,
	}
}

// Submit sends the proposal and, on approval, increments the daily counter
// and fires the outcome report and notification. The counter moves only
// after the authority approves so downstream rejections never consume the
// daily quota.
func (b *Bridge) Submit(ctx context.Context, sig signal.Candidate, signalID string, now time.Time) (bool, string) {
	prop := b.buildProposal(sig)

	approved, reason, err := b.authority.Submit(ctx, prop)
	if err != nil {
		observ.Error("authority_unreachable", err, map[string]any{"symbol": sig.Symbol})
		observ.Submissions.WithLabelValues("transport_error").Inc()
		return false, "authority_unreachable"
	}

	if !approved {
		observ.Submissions.WithLabelValues("rejected").Inc()
		observ.Log("authority_rejected", map[string]any{"symbol": sig.Symbol, "reason": reason})
		b.report(ctx, signalID, map[string]any{"kernel_reason": reason}, StatusRejectedByKernel)
		return false, reason
	}

	observ.Submissions.WithLabelValues("approved").Inc()
	observ.Log("authority_approved", map[string]any{
		"symbol": sig.Symbol,
		"side":   string(sig.Side),
		"entry":  sig.Entry.String(),
		"reason": reason,
	})

	day := now.In(b.loc).Format("2006-01-02")
	if _, err := b.counter.Increment(day); err != nil {
		observ.Error("trade_counter_increment_failed", err, map[string]any{"day": day})
	}

	b.report(ctx, signalID, map[string]any{
		"intent":        b.cfg.ExecutionIntent,
		"lot_size":      b.lotSize,
		"kernel_reason": reason,
	}, StatusExecutedPaper)

	if b.notifier != nil {
		b.notifier.Notify(fmt.Sprintf("CONTROLLED EXECUTION: %s %s at %s", sig.Symbol, sig.Side, sig.Entry))
	}
	return true, reason
}

func (b *Bridge) report(ctx context.Context, signalID string, execution map[string]any, status string) {
	if err := b.reporter.Report(ctx, signalID, execution, status); err != nil {
		observ.ReportFailures.Inc()
		observ.Error("outcome_report_failed", err, map[string]any{"signal_id": signalID, "status": status})
	}
}

// buildProposal computes the reward:risk the signal actually supports and,
// when the overlay is enabled, layers on the fixed bundle that satisfies
// the authority's expected-value, regime and liquidity gates.
func (b *Bridge) buildProposal(sig signal.Candidate) Proposal {
	rr := rewardRisk(sig)
	tm := TechMetrics{
		RRRatio:   rr,
		SetupName: b.cfg.MetricsOverlay.SetupName,
	}
	if b.cfg.MetricsOverlay.Enabled {
		mo := b.cfg.MetricsOverlay
		tm = TechMetrics{
			ExpectedValue:  mo.ExpectedValue,
			RRRatio:        maxFloat(rr, mo.MinRRRatio),
			AIConfidence:   mo.AIConfidence,
			SetupName:      mo.SetupName,
			RegimeName:     mo.RegimeName,
			ADX:            mo.ADX,
			Delta:          mo.Delta,
			SpreadPct:      mo.SpreadPct,
			LiquidityScore: mo.LiquidityScore,
			IVRank:         mo.IVRank,
		}
	}
	return Proposal{
		Symbol:      sig.Symbol,
		Mode:        string(sig.Side),
		Confidence:  float64(sig.Confidence) / 100.0,
		Metadata:    map[string]string{"source": "TELEGRAM_BRIDGE"},
		TechMetrics: tm,
	}
}

// rewardRisk is (t1 - entry) / |entry - sl| with the denominator floored at
// 0.1 to avoid a blowup on a stop glued to the entry.
func rewardRisk(sig signal.Candidate) float64 {
	t1 := sig.Entry.Mul(decimal.NewFromFloat(1.05))
	if len(sig.Targets) > 0 {
		t1 = sig.Targets[0]
	}
	denom := sig.Entry.Sub(sig.StopLoss).Abs()
	floor := decimal.NewFromFloat(0.1)
	if denom.LessThan(floor) {
		denom = floor
	}
	rr, _ := t1.Sub(sig.Entry).Div(denom).Float64()
	return rr
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
