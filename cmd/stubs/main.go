// stubs runs the in-memory backend and kernel stand-in for local pipeline
// runs.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/aegislabs/signalbridge/internal/observ"
	"github.com/aegislabs/signalbridge/internal/stubs"
)

func main() {
	_ = godotenv.Load()
	addr := flag.String("addr", ":4100", "listen address")
	minConfidence := flag.Float64("min-confidence", 0, "kernel confidence floor (0..1)")
	rejectReason := flag.String("reject-reason", "", "reject every kernel submit with this reason")
	flag.Parse()

	srv := stubs.NewServer(stubs.Options{
		APIKey:        os.Getenv("SIGNALBRIDGE_API_KEY"),
		MinConfidence: *minConfidence,
		RejectReason:  *rejectReason,
	})

	observ.Log("stubs_started", map[string]any{"addr": *addr})
	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		log.Fatalf("stubs: %v", err)
	}
}
