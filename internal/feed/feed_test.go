package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aegislabs/signalbridge/internal/config"
	"github.com/aegislabs/signalbridge/internal/signal"
)

func feedConfig(baseURL string) config.Feed {
	cfg := config.Default().Feed
	cfg.BaseURL = baseURL
	return cfg
}

func decimalFrom(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestPollLatestReturnsNewestOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/signals/today", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [
			{"signal_id": "TLG-2", "symbol": "45500 CE", "side": "BUY", "entry_price": 350, "stop_loss": 300, "targets": [400, 450], "confidence": 90},
			{"signal_id": "TLG-1", "symbol": "22500 CE", "side": "BUY", "entry_price": 200, "stop_loss": 180, "targets": [250], "confidence": 90}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(feedConfig(srv.URL))
	item, err := c.PollLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, "TLG-2", item.SignalID)
	require.Equal(t, "45500 CE", item.Symbol)
	require.True(t, item.EntryPrice.Equal(decimalFrom(t, "350")))

	// The cursor only moves on MarkProcessed, so an unmarked item is
	// returned again for retry.
	again, err := c.PollLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, again)

	c.MarkProcessed(item.SignalID)
	done, err := c.PollLatest(context.Background())
	require.NoError(t, err)
	require.Nil(t, done)
}

func TestPollLatestEmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := NewClient(feedConfig(srv.URL))
	item, err := c.PollLatest(context.Background())
	require.NoError(t, err)
	require.Nil(t, item)
}

func TestPollLatestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(feedConfig(srv.URL))
	_, err := c.PollLatest(context.Background())
	require.Error(t, err)
}

func TestItemCandidate(t *testing.T) {
	item := Item{
		SignalID:   "TLG-1",
		Symbol:     "45500 CE",
		Side:       signal.SideBuy,
		EntryPrice: signal.Price{Decimal: decimalFrom(t, "350")},
		StopLoss:   signal.Price{Decimal: decimalFrom(t, "300")},
		Targets:    []signal.Price{{Decimal: decimalFrom(t, "400")}},
		Confidence: 90,
	}
	c := item.Candidate()
	require.Equal(t, signal.StatusParsed, c.Status)
	require.Equal(t, "45500 CE", c.Symbol)
	require.True(t, c.Entry.Equal(item.EntryPrice.Decimal))
	require.Len(t, c.Targets, 1)
	require.True(t, c.Targets[0].Equal(decimalFrom(t, "400")))
}

func TestMessageClientNext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/messages/latest", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "MSG-1", "text": "NIFTY 22500 CE buy 200 tgt 250 sl 180", "received_at": "` +
			time.Now().UTC().Format(time.RFC3339) + `"}`))
	}))
	defer srv.Close()

	c := NewMessageClient(feedConfig(srv.URL))

	msg, err := c.Next(context.Background())
	require.NoError(t, err)
	require.Nil(t, msg, "204 means nothing new")

	msg, err = c.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "MSG-1", msg.ID)
	require.Contains(t, msg.Text, "22500 CE")

	// The same id is not yielded twice.
	msg, err = c.Next(context.Background())
	require.NoError(t, err)
	require.Nil(t, msg)
}
