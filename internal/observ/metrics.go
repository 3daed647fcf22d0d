package observ

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsParsed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "signals_parsed_total", Help: "Messages parsed into a valid candidate signal"},
	)
	SignalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_rejected_total", Help: "Signal-shaped messages rejected by validation"},
		[]string{"reason"},
	)
	ChatterSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "chatter_skipped_total", Help: "Messages with no recognizable symbol"},
	)
	DedupSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dedup_suppressed_total", Help: "Signals suppressed by the dedup window"},
	)
	GateBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gate_blocked_total", Help: "Signals blocked by a risk gate"},
		[]string{"gate"},
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "submissions_total", Help: "Proposals submitted to the execution authority"},
		[]string{"status"},
	)
	ForwardFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "forward_failures_total", Help: "Ingest forward attempts that failed in transport"},
	)
	ReportFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "report_failures_total", Help: "Outcome report attempts that failed"},
	)
	NotifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "notify_failures_total", Help: "Notification sends that failed"},
	)
	NotifyDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "notify_dropped_total", Help: "Notifications dropped because the queue was full"},
	)
	PollErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "poll_errors_total", Help: "Polling cycles that failed"},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		SignalsParsed, SignalsRejected, ChatterSkipped, DedupSuppressed,
		GateBlocked, Submissions, ForwardFailures, ReportFailures,
		NotifyFailures, NotifyDropped, PollErrors,
	)
}

// ServeMetrics exposes /metrics on addr. Caller owns shutdown.
func ServeMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
