// Package stubs is an in-memory stand-in for the backend and the execution
// kernel, used for local runs and end-to-end tests. State lives in maps and
// slices behind one mutex; nothing survives a restart.
package stubs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aegislabs/signalbridge/internal/feed"
	"github.com/aegislabs/signalbridge/internal/observ"
	"github.com/aegislabs/signalbridge/internal/signal"
)

// Options controls stub behaviour for tests and demos.
type Options struct {
	APIKey        string // required on ingest/submit/report when non-empty
	MinConfidence float64
	RejectReason  string // when set, every kernel submit is rejected with it
}

type outcome struct {
	SignalID  string         `json:"signal_id"`
	Execution map[string]any `json:"execution"`
	Status    string         `json:"status"`
}

type message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Server holds the in-memory backend state.
type Server struct {
	opts Options

	mu       sync.Mutex
	signals  []feed.Item // newest first
	outcomes []outcome
	latest   *message
	halted   bool
	seq      int
}

func NewServer(opts Options) *Server {
	return &Server{opts: opts}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/signals/ingest", s.handleIngest)
	mux.HandleFunc("/api/v1/signals/today", s.handleToday)
	mux.HandleFunc("/api/v1/signals/report-outcome", s.handleReportOutcome)
	mux.HandleFunc("/api/v1/kernel/submit", s.handleKernelSubmit)
	mux.HandleFunc("/api/v1/kernel/halt", s.handleKernelHalt)
	mux.HandleFunc("/api/v1/messages/latest", s.handleLatestMessage)
	mux.HandleFunc("/api/v1/messages", s.handlePostMessage)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) authorized(r *http.Request) bool {
	return s.opts.APIKey == "" || r.Header.Get("x-api-key") == s.opts.APIKey
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"reason": "invalid api key"})
		return
	}
	defer r.Body.Close()
	var p signal.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"reason": "bad json: " + err.Error()})
		return
	}
	if p.Symbol == "" || p.Side == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"reason": "missing symbol or side"})
		return
	}

	s.mu.Lock()
	s.seq++
	id := p.ID
	if id == "" {
		id = fmt.Sprintf("SIG-%d", s.seq)
	}
	item := feed.Item{
		SignalID:   id,
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		StopLoss:   p.StopLoss,
		Targets:    p.Targets,
		Confidence: p.Confidence,
	}
	s.signals = append([]feed.Item{item}, s.signals...)
	s.mu.Unlock()

	observ.Log("stub_signal_ingested", map[string]any{"signal_id": id, "symbol": p.Symbol})
	writeJSON(w, http.StatusOK, map[string]any{"status": "accepted", "signal_id": id})
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	data := make([]feed.Item, len(s.signals))
	copy(data, s.signals)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) handleReportOutcome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"reason": "invalid api key"})
		return
	}
	defer r.Body.Close()
	var o outcome
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"reason": "bad json: " + err.Error()})
		return
	}
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
	observ.Log("stub_outcome_recorded", map[string]any{"signal_id": o.SignalID, "status": o.Status})
	writeJSON(w, http.StatusOK, map[string]any{"status": "recorded"})
}

func (s *Server) handleKernelSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"reason": "invalid api key"})
		return
	}
	defer r.Body.Close()
	var p struct {
		Symbol     string  `json:"symbol"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"reason": "bad json: " + err.Error()})
		return
	}

	s.mu.Lock()
	halted := s.halted
	s.mu.Unlock()
	if halted {
		writeJSON(w, http.StatusForbidden, map[string]any{"reason": "kernel halted"})
		return
	}
	if s.opts.RejectReason != "" {
		writeJSON(w, http.StatusForbidden, map[string]any{"reason": s.opts.RejectReason})
		return
	}
	if p.Confidence < s.opts.MinConfidence {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"reason": fmt.Sprintf("confidence %.2f below floor %.2f", p.Confidence, s.opts.MinConfidence),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reason": "approved", "symbol": p.Symbol})
}

func (s *Server) handleKernelHalt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	s.halted = true
	s.mu.Unlock()
	observ.Warn("stub_kernel_halted", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "halted"})
}

func (s *Server) handleLatestMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	msg := s.latest
	s.mu.Unlock()
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var m message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"reason": "bad json: " + err.Error()})
		return
	}
	if m.Text == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"reason": "missing text"})
		return
	}
	s.mu.Lock()
	s.seq++
	if m.ID == "" {
		m.ID = fmt.Sprintf("MSG-%d", s.seq)
	}
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}
	s.latest = &m
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "queued", "id": m.ID})
}

// Halted reports whether a kernel halt was received.
func (s *Server) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Outcomes returns a copy of the recorded outcome reports.
func (s *Server) Outcomes() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.outcomes))
	for _, o := range s.outcomes {
		out = append(out, map[string]any{
			"signal_id": o.SignalID,
			"execution": o.Execution,
			"status":    o.Status,
		})
	}
	return out
}
