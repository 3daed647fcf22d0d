// ingestd polls the raw message feed, parses tips into structured signals
// and forwards accepted ones to the backend. Exits non-zero when the panic
// sentinel appears.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	stdsignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/dedup"
	"github.com/aegislabs/signalbridge/internal/feed"
	"github.com/aegislabs/signalbridge/internal/ingest"
	"github.com/aegislabs/signalbridge/internal/observ"
	"github.com/aegislabs/signalbridge/internal/parser"
	"github.com/aegislabs/signalbridge/internal/pipeline"
	"github.com/aegislabs/signalbridge/internal/risk"
)

func main() {
	_ = godotenv.Load()
	configPath := flag.String("config", "config.yaml", "path to config file")
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

	ctx, stop := stdsignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sentinel := risk.NewSentinelFile(cfg.Risk.PanicPath)
	sentinel.Watch(ctx)

	runner := pipeline.NewIngestRunner(
		pipeline.IngestConfig{
			PollInterval:  time.Duration(cfg.Feed.PollIntervalMs) * time.Millisecond,
			MaxMessageAge: time.Duration(cfg.Feed.MaxAgeSeconds) * time.Second,
			Source:        cfg.Source,
		},
		parser.New(cfg.Parser, loc),
		dedup.New(time.Duration(cfg.Dedup.WindowSeconds)*time.Second, cfg.Dedup.MaxKeys),
		ingest.NewForwarder(cfg.Ingest, cfg.APIKey, cfg.Source),
		sentinel,
		feed.NewMessageClient(cfg.Feed),
	)

	metricsSrv := observ.ServeMetrics(cfg.Metrics.Addr)
	observ.Log("ingestd_started", map[string]any{
		"feed":    cfg.Feed.BaseURL + cfg.Feed.MessagesPath,
		"metrics": cfg.Metrics.Addr,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })

	err = g.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if errors.Is(err, pipeline.ErrPanicHalt) {
		observ.Error("ingestd_panic_halt", err, nil)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("ingestd: %v", err)
	}
	observ.Log("ingestd_stopped", nil)
}
