package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aegislabs/signalbridge/internal/config"
)

func authorityConfig(srvURL string) config.Authority {
	cfg := config.Default().Authority
	cfg.SubmitURL = srvURL + "/api/v1/kernel/submit"
	cfg.HaltURL = srvURL + "/api/v1/kernel/halt"
	return cfg
}

func TestHTTPAuthoritySubmitApproved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/kernel/submit", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("x-api-key"))
		require.Equal(t, "TELEGRAM", r.Header.Get("x-source"))

		var p Proposal
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		require.Equal(t, "NIFTY 22500 CE", p.Symbol)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reason": "all gates passed"}`))
	}))
	defer srv.Close()

	a := NewHTTPAuthority(authorityConfig(srv.URL), "secret", "TELEGRAM")
	approved, reason, err := a.Submit(context.Background(), Proposal{Symbol: "NIFTY 22500 CE", Mode: "BUY"})
	require.NoError(t, err)
	require.True(t, approved)
	require.Equal(t, "all gates passed", reason)
}

func TestHTTPAuthoritySubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"reason": "expected value below floor"}`))
	}))
	defer srv.Close()

	a := NewHTTPAuthority(authorityConfig(srv.URL), "secret", "TELEGRAM")
	approved, reason, err := a.Submit(context.Background(), Proposal{Symbol: "NIFTY 22500 CE"})
	require.NoError(t, err, "a rejection is a decision, not an error")
	require.False(t, approved)
	require.Equal(t, "expected value below floor", reason)
}

func TestHTTPAuthoritySubmitRejectedNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewHTTPAuthority(authorityConfig(srv.URL), "secret", "TELEGRAM")
	approved, reason, err := a.Submit(context.Background(), Proposal{})
	require.NoError(t, err)
	require.False(t, approved)
	require.Equal(t, "status 503", reason)
}

func TestHTTPAuthorityHalt(t *testing.T) {
	var halted bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/kernel/halt", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		halted = true
	}))
	defer srv.Close()

	a := NewHTTPAuthority(authorityConfig(srv.URL), "secret", "TELEGRAM")
	require.NoError(t, a.Halt(context.Background()))
	require.True(t, halted)
}

func TestHTTPReporterReport(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	cfg := config.Default().Feedback
	cfg.URL = srv.URL
	rep := NewHTTPReporter(cfg, "secret", "TELEGRAM")

	err := rep.Report(context.Background(), "TLG-1", map[string]any{"intent": "PAPER_TRADE"}, StatusExecutedPaper)
	require.NoError(t, err)
	require.Equal(t, "TLG-1", got["signal_id"])
	require.Equal(t, StatusExecutedPaper, got["status"])

	exec, ok := got["execution"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "PAPER_TRADE", exec["intent"])
}

func TestHTTPReporterReportErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default().Feedback
	cfg.URL = srv.URL
	rep := NewHTTPReporter(cfg, "secret", "TELEGRAM")
	require.Error(t, rep.Report(context.Background(), "TLG-1", nil, StatusRejectedByKernel))
}
