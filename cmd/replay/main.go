// replay runs a corpus of recorded messages through the ingest pipeline.
// The corpus is JSONL, one {"id": ..., "text": ...} object per line. With
// -dry-run the forwarder is swapped for a no-op so nothing reaches the
// backend; either way the ingestion reports land in the log.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/dedup"
	"github.com/aegislabs/signalbridge/internal/ingest"
	"github.com/aegislabs/signalbridge/internal/observ"
	"github.com/aegislabs/signalbridge/internal/parser"
	"github.com/aegislabs/signalbridge/internal/pipeline"
	"github.com/aegislabs/signalbridge/internal/risk"
	"github.com/aegislabs/signalbridge/internal/signal"
)

type corpusLine struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type nopForwarder struct{}

func (nopForwarder) Forward(ctx context.Context, p signal.Payload) (bool, string, error) {
	return true, "dry_run", nil
}

type nopSource struct{}

func (nopSource) Next(ctx context.Context) (*signal.Raw, error) { return nil, nil }

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", "config.yaml", "path to config file")
	corpusPath := flag.String("corpus", "fixtures/messages.jsonl", "JSONL message corpus")
	dryRun := flag.Bool("dry-run", false, "parse and validate without forwarding")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		cfg = config.Default()
	}
	if k := os.Getenv("SIGNALBRIDGE_API_KEY"); k != "" {
		cfg.APIKey = k
	}
	observ.Init(cfg.Logging)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("load timezone %s: %v", cfg.Timezone, err)
	}

	var fwd pipeline.SignalForwarder = ingest.NewForwarder(cfg.Ingest, cfg.APIKey, cfg.Source)
	if *dryRun {
		fwd = nopForwarder{}
	}

	runner := pipeline.NewIngestRunner(
		pipeline.IngestConfig{
			PollInterval: time.Second, // unused in replay; Process is driven directly
			Source:       cfg.Source,
		},
		parser.New(cfg.Parser, loc),
		dedup.New(time.Duration(cfg.Dedup.WindowSeconds)*time.Second, cfg.Dedup.MaxKeys),
		fwd,
		risk.NewSentinelFile(cfg.Risk.PanicPath),
		nopSource{},
	)

	f, err := os.Open(*corpusPath)
	if err != nil {
		log.Fatalf("open corpus %s: %v", *corpusPath, err)
	}
	defer f.Close()

	ctx := context.Background()
	total := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg corpusLine
		if err := json.Unmarshal(line, &msg); err != nil {
			observ.Warn("corpus_line_skipped", map[string]any{"error": err.Error()})
			continue
		}
		runner.Process(ctx, signal.Raw{ID: msg.ID, Text: msg.Text}, false)
		total++
	}
	if err := sc.Err(); err != nil {
		log.Fatalf("read corpus: %v", err)
	}
	observ.Log("replay_complete", map[string]any{"messages": total, "dry_run": *dryRun})
}
