// Package parser turns free-form channel text into candidate signals using
// ordered heuristic extraction with fallbacks. Upstream text is unstructured
// and hostile to single-pattern matching, so every stage degrades to a
// cheaper heuristic instead of failing outright.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/signal"
)

var (
	cleanRe    = regexp.MustCompile(`[^\w\s.\-/@()]`)
	rangeRe    = regexp.MustCompile(`\((\d+)\s*-\s*(\d+)\)`)
	entryCueRe = regexp.MustCompile(`(?i)(?:buy|at|@|upto|price|entry)\s*(\d+(?:\.\d+)?)`)
	numberRe   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	targetRe   = regexp.MustCompile(`(?i)target|tgt`)
	stopSplit  = regexp.MustCompile(`(?i)stop|sl`)
	stopCueRe  = regexp.MustCompile(`(?i)(?:sl|stoploss|stop|loss)\s*(\d+(?:\.\d+)?)`)
	sellCueRe  = regexp.MustCompile(`(?i)sell|put`)
	buyCueRe   = regexp.MustCompile(`(?i)buy|call`)
)

type Parser struct {
	cfg      config.Parser
	loc      *time.Location
	symbolRe *regexp.Regexp // index vocabulary + optional strike + option type
	bareRe   *regexp.Regexp // bare 5-digit strike fallback
}

func New(cfg config.Parser, loc *time.Location) *Parser {
	escaped := make([]string, 0, len(cfg.Indexes))
	for _, idx := range cfg.Indexes {
		escaped = append(escaped, regexp.QuoteMeta(strings.ToUpper(idx)))
	}
	return &Parser{
		cfg:      cfg,
		loc:      loc,
		symbolRe: regexp.MustCompile(`(?i)(` + strings.Join(escaped, "|") + `)\s*(\d*)\s*(CE|PE)`),
		bareRe:   regexp.MustCompile(`(?i)(\d{5})\s*(CE|PE)`),
	}
}

// Parse extracts a candidate signal from text. It returns nil only when no
// symbol pattern is recognizable at all; once a symbol matched the result is
// always PARSED or REJECTED with a reason, never silently dropped.
func (p *Parser) Parse(text string) *signal.Candidate {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	clean := cleanRe.ReplaceAllString(text, " ")

	span := p.symbolRe.FindStringIndex(clean)
	if span == nil {
		span = p.bareRe.FindStringIndex(clean)
	}
	if span == nil {
		return nil // pure chatter
	}
	symbol := strings.ToUpper(strings.TrimSpace(clean[span[0]:span[1]]))

	// Default side is BUY per the channel's style. A sell/put cue anywhere
	// wins over buy/call regardless of textual order.
	side := signal.SideBuy
	if sellCueRe.MatchString(clean) {
		side = signal.SideSell
	} else if buyCueRe.MatchString(clean) {
		side = signal.SideBuy
	}

	entry, found := p.extractEntry(clean, span[1])
	if !found || entry.IsZero() {
		return p.reject(symbol, side, "no entry price found")
	}

	targets := filterTargets(extractTargets(clean), side, entry)
	sl, slFound := extractStopLoss(clean)

	if len(targets) == 0 {
		return p.reject(symbol, side, "no valid targets")
	}
	if !slFound {
		return p.reject(symbol, side, "no stoploss found")
	}
	if side == signal.SideBuy {
		if sl.GreaterThanOrEqual(entry) {
			return p.reject(symbol, side, fmt.Sprintf("sl (%s) >= entry (%s) for BUY", sl, entry))
		}
		if entry.GreaterThanOrEqual(targets[0]) {
			return p.reject(symbol, side, fmt.Sprintf("entry (%s) >= t1 (%s) for BUY", entry, targets[0]))
		}
	} else {
		if sl.LessThanOrEqual(entry) {
			return p.reject(symbol, side, fmt.Sprintf("sl (%s) <= entry (%s) for SELL", sl, entry))
		}
		if entry.LessThanOrEqual(targets[0]) {
			return p.reject(symbol, side, fmt.Sprintf("entry (%s) <= t1 (%s) for SELL", entry, targets[0]))
		}
	}

	return &signal.Candidate{
		Instrument: p.cfg.Instrument,
		Symbol:     symbol,
		Side:       side,
		Entry:      entry,
		StopLoss:   sl,
		Targets:    targets,
		Confidence: p.cfg.Confidence,
		Status:     signal.StatusParsed,
		Timestamp:  time.Now().In(p.loc).Format(time.RFC3339),
	}
}

func (p *Parser) reject(symbol string, side signal.Side, reason string) *signal.Candidate {
	return &signal.Candidate{
		Instrument: p.cfg.Instrument,
		Symbol:     symbol,
		Side:       side,
		Status:     signal.StatusRejected,
		Reason:     reason,
	}
}

// extractEntry tries, in order: a parenthesized range (midpoint), a number
// following an entry cue word, and finally the first bare number after the
// matched symbol span.
func (p *Parser) extractEntry(clean string, symbolEnd int) (decimal.Decimal, bool) {
	if m := rangeRe.FindStringSubmatch(clean); m != nil {
		lo, err1 := decimal.NewFromString(m[1])
		hi, err2 := decimal.NewFromString(m[2])
		if err1 == nil && err2 == nil {
			return lo.Add(hi).Div(decimal.NewFromInt(2)), true
		}
	}
	if m := entryCueRe.FindStringSubmatch(clean); m != nil {
		if d, err := decimal.NewFromString(m[1]); err == nil {
			return d, true
		}
	}
	if symbolEnd < len(clean) {
		if n := numberRe.FindString(clean[symbolEnd:]); n != "" {
			if d, err := decimal.NewFromString(n); err == nil {
				return d, true
			}
		}
	}
	return decimal.Decimal{}, false
}

// extractTargets takes the text after the first target keyword, cut at the
// first stop-loss keyword, and returns every number in it in text order.
func extractTargets(clean string) []decimal.Decimal {
	parts := targetRe.Split(clean, 2)
	if len(parts) < 2 {
		return nil
	}
	section := stopSplit.Split(parts[1], 2)[0]
	var out []decimal.Decimal
	for _, n := range numberRe.FindAllString(section, -1) {
		if d, err := decimal.NewFromString(n); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// filterTargets keeps targets strictly beyond entry in the side's favorable
// direction, preserving first-found order.
func filterTargets(targets []decimal.Decimal, side signal.Side, entry decimal.Decimal) []decimal.Decimal {
	var out []decimal.Decimal
	for _, t := range targets {
		if side == signal.SideBuy && t.GreaterThan(entry) {
			out = append(out, t)
		}
		if side == signal.SideSell && t.LessThan(entry) {
			out = append(out, t)
		}
	}
	return out
}

func extractStopLoss(clean string) (decimal.Decimal, bool) {
	m := stopCueRe.FindStringSubmatch(clean)
	if m == nil {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
