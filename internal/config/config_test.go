package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	c := Default()

	require.Equal(t, "TELEGRAM", c.Source)
	require.Equal(t, "Asia/Kolkata", c.Timezone)
	require.Equal(t, ":9109", c.Metrics.Addr)

	require.Contains(t, c.Parser.Indexes, "NIFTY")
	require.Contains(t, c.Parser.Indexes, "BANKNIFTY")
	require.Equal(t, 90, c.Parser.Confidence)
	require.Equal(t, "NFO", c.Parser.Instrument)

	require.Equal(t, 300, c.Dedup.WindowSeconds)
	require.Equal(t, 100, c.Dedup.MaxKeys)

	require.Equal(t, "NIFTY", c.Risk.TargetInstrument)
	require.Equal(t, "BANKNIFTY", c.Risk.ExcludedInstrument)
	require.Equal(t, 1, c.Risk.MaxTradesPerDay)
	require.Equal(t, float64(500), c.Risk.MaxRiskPerTrade)
	require.Equal(t, int64(75), c.Risk.LotSize)

	require.Equal(t, "PAPER_TRADE", c.Bridge.ExecutionIntent)
	require.False(t, c.Bridge.MetricsOverlay.Enabled, "overlay must be opt-in")
	require.InDelta(t, 1.5, c.Bridge.MetricsOverlay.MinRRRatio, 1e-9)

	require.False(t, c.Alerts.Enabled)
	require.Equal(t, 20, c.Alerts.RatePerMinute)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
source: "CHANNEL_X"
risk:
  max_trades_per_day: 3
  lot_size: 50
dedup:
  window_seconds: 120
bridge:
  metrics_overlay:
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "CHANNEL_X", c.Source)
	require.Equal(t, 3, c.Risk.MaxTradesPerDay)
	require.Equal(t, int64(50), c.Risk.LotSize)
	require.Equal(t, 120, c.Dedup.WindowSeconds)
	require.True(t, c.Bridge.MetricsOverlay.Enabled)

	// Untouched fields still get defaults.
	require.Equal(t, "Asia/Kolkata", c.Timezone)
	require.Equal(t, "BANKNIFTY", c.Risk.ExcludedInstrument)
	require.InDelta(t, 0.9, c.Bridge.MetricsOverlay.AIConfidence, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk: ["), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
