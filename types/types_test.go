package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGrowthRateUndefinedForSingleSample(t *testing.T) {
	rec := &VideoRecord{ID: "a"}
	rec.AppendSample(MetricsSample{Views: 500, SampledAt: time.Now()})

	rate, ok := rec.GrowthRate()
	assert.False(t, ok)
	assert.Zero(t, rate)
}

func TestGrowthRateTwoSamples(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &VideoRecord{ID: "a"}
	rec.AppendSample(MetricsSample{Views: 1000, SampledAt: base})
	rec.AppendSample(MetricsSample{Views: 1300, SampledAt: base.Add(time.Hour)})

	rate, ok := rec.GrowthRate()
	assert.True(t, ok)
	assert.InDelta(t, 0.3, rate, 1e-9)
}

func TestAppendSampleDropsOutOfOrder(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &VideoRecord{ID: "a"}
	rec.AppendSample(MetricsSample{Views: 1000, SampledAt: base})
	rec.AppendSample(MetricsSample{Views: 900, SampledAt: base.Add(-time.Minute)})
	rec.AppendSample(MetricsSample{Views: 1000, SampledAt: base})

	assert.Len(t, rec.Samples, 1)
}

func TestEngagementRatioUsesLatestSample(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &VideoRecord{ID: "a"}
	rec.AppendSample(MetricsSample{Views: 1000, Likes: 500, SampledAt: base})
	rec.AppendSample(MetricsSample{Views: 2000, Likes: 100, Comments: 100, SampledAt: base.Add(time.Hour)})

	assert.InDelta(t, 0.1, rec.EngagementRatio(), 1e-9)
}
