// Package cost estimates paid-scraper spend for enrichment batches from a
// static per-source price table.
package cost

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rotisserie/eris"
)

// SourceRate holds pricing for one paid source key.
type SourceRate struct {
	// PerItem is the USD cost per profile returned.
	PerItem float64 `yaml:"per_item" mapstructure:"per_item"`
	// StartFee is a fixed USD fee per distinct actor run, charged once per
	// batch when the estimate requests it.
	StartFee float64 `yaml:"start_fee" mapstructure:"start_fee"`
}

// Rates maps source keys to pricing.
type Rates map[string]SourceRate

// DefaultRates returns the default per-source pricing.
func DefaultRates() Rates {
	return Rates{
		"apify-instagram-profile": {PerItem: 0.0005, StartFee: 0.007},
		"apify-tiktok-profile":    {PerItem: 0.002, StartFee: 0.007},
		"apify-youtube-profile":   {PerItem: 0.0015, StartFee: 0.007},
	}
}

// LoadRates reads a rates override file. Keys present in the file replace
// the defaults; unknown defaults are kept.
func LoadRates(path string) (Rates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "cost: read rates %s", path)
	}

	var overrides Rates
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrap(err, "cost: parse rates")
	}

	rates := DefaultRates()
	for key, rate := range overrides {
		rates[key] = rate
	}
	return rates, nil
}

// Batch is one (source, item-count) pair to estimate.
type Batch struct {
	SourceKey       string
	ItemCount       int
	IncludeStartFee bool
}

// Line is the priced expansion of one batch.
type Line struct {
	SourceKey   string  `json:"source_key"`
	UnitCostUSD float64 `json:"unit_cost_usd"`
	ItemCount   int     `json:"item_count"`
	StartFeeUSD float64 `json:"start_fee_usd,omitempty"`
	TotalUSD    float64 `json:"total_usd"`
}

// Estimate is an ephemeral value object; computed on demand, never
// persisted.
type Estimate struct {
	Lines    []Line  `json:"lines"`
	TotalUSD float64 `json:"total_usd"`
}

// Estimator prices batches against a rate table.
type Estimator struct {
	rates Rates
}

// NewEstimator creates an Estimator with the given rates.
func NewEstimator(rates Rates) *Estimator {
	return &Estimator{rates: rates}
}

// Estimate prices the given batches. It is pure and deterministic. An
// unknown source key is a programmer error and panics rather than silently
// estimating zero.
func (e *Estimator) Estimate(batches []Batch) Estimate {
	var est Estimate
	for _, b := range batches {
		rate, ok := e.rates[b.SourceKey]
		if !ok {
			panic(fmt.Sprintf("cost: unknown source key %q", b.SourceKey))
		}

		line := Line{
			SourceKey:   b.SourceKey,
			UnitCostUSD: rate.PerItem,
			ItemCount:   b.ItemCount,
		}
		line.TotalUSD = rate.PerItem * float64(b.ItemCount)
		if b.IncludeStartFee {
			line.StartFeeUSD = rate.StartFee
			line.TotalUSD += rate.StartFee
		}

		est.Lines = append(est.Lines, line)
		est.TotalUSD += line.TotalUSD
	}
	return est
}
