package stubs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, url string, v any, headers map[string]string) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestIngestThenToday(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{APIKey: "secret"}).Handler())
	defer srv.Close()

	payload := map[string]any{
		"symbol":      "45500 CE",
		"side":        "BUY",
		"entry_price": 350,
		"stop_loss":   300,
		"targets":     []float64{400, 450},
		"confidence":  90,
		"id":          "TLG-MSG-1",
	}
	resp := postJSON(t, srv.URL+"/api/v1/signals/ingest", payload, map[string]string{"x-api-key": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode(t, resp)
	require.Equal(t, "accepted", out["status"])
	require.Equal(t, "TLG-MSG-1", out["signal_id"])

	today, err := http.Get(srv.URL + "/api/v1/signals/today")
	require.NoError(t, err)
	feed := decode(t, today)
	data, ok := feed["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	first := data[0].(map[string]any)
	require.Equal(t, "TLG-MSG-1", first["signal_id"])
	require.Equal(t, "45500 CE", first["symbol"])
}

func TestIngestRequiresAPIKey(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{APIKey: "secret"}).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/signals/ingest",
		map[string]any{"symbol": "45500 CE", "side": "BUY"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestIngestRejectsIncompletePayload(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{}).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/signals/ingest", map[string]any{"symbol": "45500 CE"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	out := decode(t, resp)
	require.Equal(t, "missing symbol or side", out["reason"])
}

func TestKernelSubmitApprovesByDefault(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{}).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/kernel/submit",
		map[string]any{"symbol": "45500 CE", "confidence": 0.9}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "approved", decode(t, resp)["reason"])
}

func TestKernelSubmitConfiguredRejection(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{RejectReason: "risk budget exhausted"}).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/kernel/submit",
		map[string]any{"symbol": "45500 CE", "confidence": 0.9}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "risk budget exhausted", decode(t, resp)["reason"])
}

func TestKernelSubmitConfidenceFloor(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{MinConfidence: 0.8}).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/kernel/submit",
		map[string]any{"symbol": "45500 CE", "confidence": 0.5}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Contains(t, decode(t, resp)["reason"], "below floor")
}

func TestKernelHaltBlocksSubmissions(t *testing.T) {
	s := NewServer(Options{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/kernel/halt", map[string]any{}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.True(t, s.Halted())

	resp = postJSON(t, srv.URL+"/api/v1/kernel/submit",
		map[string]any{"symbol": "45500 CE", "confidence": 0.9}, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "kernel halted", decode(t, resp)["reason"])
}

func TestReportOutcomeRecorded(t *testing.T) {
	s := NewServer(Options{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/signals/report-outcome", map[string]any{
		"signal_id": "TLG-1",
		"execution": map[string]any{"intent": "PAPER_TRADE"},
		"status":    "EXECUTED_PAPER",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	outcomes := s.Outcomes()
	require.Len(t, outcomes, 1)
	require.Equal(t, "TLG-1", outcomes[0]["signal_id"])
	require.Equal(t, "EXECUTED_PAPER", outcomes[0]["status"])
}

func TestMessageQueueRoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewServer(Options{}).Handler())
	defer srv.Close()

	// Empty queue: 204.
	resp, err := http.Get(srv.URL + "/api/v1/messages/latest")
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/messages",
		map[string]any{"text": "NIFTY 22500 CE buy 200 tgt 250 sl 180"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	queued := decode(t, resp)
	require.Equal(t, "queued", queued["status"])

	resp, err = http.Get(srv.URL + "/api/v1/messages/latest")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msg := decode(t, resp)
	require.Equal(t, queued["id"], msg["id"])
	require.Contains(t, msg["text"], "22500 CE")
}
