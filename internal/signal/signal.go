// Package signal holds the data model shared by the parsing, gating and
// submission stages: raw channel messages, candidate signals and the ingest
// wire payload.
package signal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type Status string

const (
	StatusParsed   Status = "PARSED"
	StatusRejected Status = "REJECTED"
)

// Raw is one message as received from the channel. Never persisted beyond
// log output.
type Raw struct {
	ID         string
	Text       string
	ReceivedAt time.Time
}

// Candidate is the parser's output: either a fully populated PARSED signal
// or a REJECTED one carrying the rejection reason. Constructed once per
// message and never mutated afterwards.
type Candidate struct {
	Instrument string
	Symbol     string
	Side       Side
	Entry      decimal.Decimal
	StopLoss   decimal.Decimal
	Targets    []decimal.Decimal
	Confidence int
	Status     Status
	Reason     string
	Timestamp  string // ISO-8601 in the exchange timezone
}

func (c Candidate) Rejected() bool { return c.Status == StatusRejected }

// Price is a decimal that marshals as a bare JSON number. The backend wire
// format carries prices unquoted; wrapping keeps that local instead of
// flipping decimal's package-global marshal flag for every importer.
type Price struct {
	decimal.Decimal
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.String()), nil
}

// Metadata rides along with the ingest payload for audit and replay.
type Metadata struct {
	OriginalText string `json:"original_text"`
	IsReplay     bool   `json:"is_replay"`
	IngestedAt   string `json:"ingested_at"`
}

// Payload is the ingest wire format.
type Payload struct {
	Instrument   string   `json:"instrument"`
	Symbol       string   `json:"symbol"`
	Side         Side     `json:"side"`
	EntryPrice   Price    `json:"entry_price"`
	StopLoss     Price    `json:"stop_loss"`
	Targets      []Price  `json:"targets"`
	Confidence   int      `json:"confidence"`
	TimestampIST string   `json:"timestamp_ist"`
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Metadata     Metadata `json:"metadata"`
}

// NewPayload assembles the wire payload for a PARSED candidate. Message ids
// keep their channel prefix; messages without one get a generated id.
func NewPayload(c Candidate, raw Raw, source string, isReplay bool, now time.Time) Payload {
	id := raw.ID
	if id == "" {
		id = uuid.NewString()
	}
	targets := make([]Price, 0, len(c.Targets))
	for _, t := range c.Targets {
		targets = append(targets, Price{t})
	}
	return Payload{
		Instrument:   c.Instrument,
		Symbol:       c.Symbol,
		Side:         c.Side,
		EntryPrice:   Price{c.Entry},
		StopLoss:     Price{c.StopLoss},
		Targets:      targets,
		Confidence:   c.Confidence,
		TimestampIST: c.Timestamp,
		ID:           fmt.Sprintf("TLG-%s", id),
		Source:       source,
		Metadata: Metadata{
			OriginalText: raw.Text,
			IsReplay:     isReplay,
			IngestedAt:   now.UTC().Format(time.RFC3339),
		},
	}
}
