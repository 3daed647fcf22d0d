// Package risk enforces the gates a signal must clear before submission:
// instrument filter, daily trade limit and monetary risk ceiling, plus the
// process-wide panic switch and the persisted daily counter behind them.
package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/observ"
	"github.com/aegislabs/signalbridge/internal/signal"
)

type Gate struct {
	cfg     config.Risk
	maxRisk decimal.Decimal
	lotSize decimal.Decimal
	counter CounterStore
	loc     *time.Location
}

func NewGate(cfg config.Risk, counter CounterStore, loc *time.Location) *Gate {
	return &Gate{
		cfg:     cfg,
		maxRisk: decimal.NewFromFloat(cfg.MaxRiskPerTrade),
		lotSize: decimal.NewFromInt(cfg.LotSize),
		counter: counter,
		loc:     loc,
	}
}

// Day returns the gate's notion of the current trading day.
func (g *Gate) Day(now time.Time) string {
	return now.In(g.loc).Format("2006-01-02")
}

// TotalRisk is |entry - stop| scaled by lot size.
func (g *Gate) TotalRisk(sig signal.Candidate) decimal.Decimal {
	return sig.Entry.Sub(sig.StopLoss).Abs().Mul(g.lotSize)
}

// Authorize runs the gate chain in order, short-circuiting on the first
// failure. It never mutates the counter; incrementing is the caller's job
// and must happen only after the downstream authority also approves.
func (g *Gate) Authorize(sig signal.Candidate, now time.Time) (bool, string) {
	symbol := strings.ToUpper(sig.Symbol)
	if !strings.Contains(symbol, strings.ToUpper(g.cfg.TargetInstrument)) ||
		strings.Contains(symbol, strings.ToUpper(g.cfg.ExcludedInstrument)) {
		return false, fmt.Sprintf("instrument_filter: %s is not %s", sig.Symbol, g.cfg.TargetInstrument)
	}

	day := g.Day(now)
	count, err := g.counter.Count(day)
	if err != nil {
		// An unreadable counter counts as zero, matching the file store's
		// tolerance for a missing file.
		observ.Error("trade_counter_read_failed", err, map[string]any{"day": day})
		count = 0
	}
	if count >= g.cfg.MaxTradesPerDay {
		return false, fmt.Sprintf("daily_limit: %d/%d trades used", count, g.cfg.MaxTradesPerDay)
	}

	total := g.TotalRisk(sig)
	if total.GreaterThan(g.maxRisk) {
		return false, fmt.Sprintf("risk_limit: total risk %s exceeds %s", total, g.maxRisk)
	}

	return true, "gates_cleared"
}

// GateName extracts the gate token from an Authorize reason, for metrics.
func GateName(reason string) string {
	if i := strings.Index(reason, ":"); i > 0 {
		return reason[:i]
	}
	return reason
}
