// bridge polls the structured signal feed, runs the risk gates and submits
// cleared signals to the execution authority. The panic sentinel halts the
// authority and exits the process non-zero.
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

	"github.com/aegislabs/signalbridge/internal/alerts"
	"github.com/aegislabs/signalbridge/internal/bridge"
	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/feed"
	"github.com/aegislabs/signalbridge/internal/observ"
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
	if t := os.Getenv("SIGNALBRIDGE_BOT_TOKEN"); t != "" {
		cfg.Alerts.BotToken = t
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

	counter := risk.NewFileCounterStore(cfg.Risk.CounterPath)
	gate := risk.NewGate(cfg.Risk, counter, loc)
	authority := bridge.NewHTTPAuthority(cfg.Authority, cfg.APIKey, cfg.Source)
	reporter := bridge.NewHTTPReporter(cfg.Feedback, cfg.APIKey, cfg.Source)
	notifier := alerts.NewTelegramNotifier(cfg.Alerts)
	defer notifier.Close()

	br := bridge.New(cfg.Bridge, cfg.Risk.LotSize, authority, reporter, notifier, counter, loc)
	runner := pipeline.NewExecRunner(
		time.Duration(cfg.Feed.PollIntervalMs)*time.Millisecond,
		feed.NewClient(cfg.Feed),
		gate, br, sentinel, authority,
	)

	metricsSrv := observ.ServeMetrics(cfg.Metrics.Addr)
	observ.Log("bridge_started", map[string]any{
		"feed":    cfg.Feed.BaseURL + cfg.Feed.SignalsPath,
		"kernel":  cfg.Authority.SubmitURL,
		"metrics": cfg.Metrics.Addr,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })

	err = g.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if errors.Is(err, pipeline.ErrPanicHalt) {
		observ.Error("bridge_panic_halt", err, nil)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("bridge: %v", err)
	}
	observ.Log("bridge_stopped", nil)
}
