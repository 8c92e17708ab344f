package cost

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate_SingleBatch(t *testing.T) {
	e := NewEstimator(DefaultRates())

	est := e.Estimate([]Batch{
		{SourceKey: "apify-instagram-profile", ItemCount: 100},
	})

	require.Len(t, est.Lines, 1)
	assert.InDelta(t, 0.05, est.Lines[0].TotalUSD, 1e-9)
	assert.InDelta(t, 0.05, est.TotalUSD, 1e-9)
	assert.Zero(t, est.Lines[0].StartFeeUSD)
}

func TestEstimate_StartFee(t *testing.T) {
	e := NewEstimator(DefaultRates())

	est := e.Estimate([]Batch{
		{SourceKey: "apify-instagram-profile", ItemCount: 10, IncludeStartFee: true},
	})

	assert.InDelta(t, 0.005+0.007, est.TotalUSD, 1e-9)
	assert.InDelta(t, 0.007, est.Lines[0].StartFeeUSD, 1e-9)
}

func TestEstimate_MultipleSources(t *testing.T) {
	e := NewEstimator(Rates{
		"a": {PerItem: 0.001},
		"b": {PerItem: 0.01},
	})

	est := e.Estimate([]Batch{
		{SourceKey: "a", ItemCount: 100},
		{SourceKey: "b", ItemCount: 10},
	})

	require.Len(t, est.Lines, 2)
	assert.InDelta(t, 0.2, est.TotalUSD, 1e-9)
}

func TestEstimate_UnknownSourceKeyPanics(t *testing.T) {
	e := NewEstimator(DefaultRates())

	assert.Panics(t, func() {
		e.Estimate([]Batch{{SourceKey: "nope", ItemCount: 1}})
	})
}

func TestEstimate_EmptyBatches(t *testing.T) {
	e := NewEstimator(DefaultRates())
	est := e.Estimate(nil)
	assert.Zero(t, est.TotalUSD)
	assert.Empty(t, est.Lines)
}

func TestLoadRates_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	yaml := `
apify-instagram-profile:
  per_item: 0.001
  start_fee: 0.01
custom-source:
  per_item: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	rates, err := LoadRates(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.001, rates["apify-instagram-profile"].PerItem, 1e-9)
	assert.InDelta(t, 0.5, rates["custom-source"].PerItem, 1e-9)
	// Defaults untouched by the override file survive.
	assert.InDelta(t, 0.002, rates["apify-tiktok-profile"].PerItem, 1e-9)
}

func TestLoadRates_MissingFile(t *testing.T) {
	_, err := LoadRates(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
