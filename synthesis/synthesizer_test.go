package synthesis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-pipeline/stage"
	"trend-pipeline/types"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func rec(id string, rank int, analyzedAt time.Time) *types.AnalysisRecord {
	return &types.AnalysisRecord{
		VideoID:       id,
		DiscoveryRank: rank,
		AnalyzedAt:    analyzedAt,
		HookType:      types.HookShock,
		PlotArc:       "setup_payoff",
		VisualStyle:   "fast-cut energetic",
		AudioStyle:    "phonk",
		TrendCategory: types.CategorySigmaEdit,
		DurationSec:   30,
		HookSeconds:   2,
	}
}

func TestSynthesizeEmptyIsInsufficientData(t *testing.T) {
	bp, err := Synthesize(nil)
	assert.Nil(t, bp)

	var insufficient *stage.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "synthesize", insufficient.Op)
}

func TestSynthesizeSourceCountAndConfidence(t *testing.T) {
	var records []*types.AnalysisRecord
	for i := 0; i < 4; i++ {
		records = append(records, rec("v", i, base))
	}

	bp, err := Synthesize(records)
	require.NoError(t, err)
	assert.Equal(t, 4, bp.SourceCount)
	assert.InDelta(t, 0.4, bp.Confidence, 1e-9)
	assert.Equal(t, types.CategorySigmaEdit, bp.Category)
	assert.Equal(t, "sigma_edits_trend", bp.Name)
}

func TestConfidenceCapsAtOne(t *testing.T) {
	var records []*types.AnalysisRecord
	for i := 0; i < 15; i++ {
		records = append(records, rec("v", i, base))
	}

	bp, err := Synthesize(records)
	require.NoError(t, err)
	assert.Equal(t, 1.0, bp.Confidence)
}

func TestDominantHookStrictMajorityIgnoresOrder(t *testing.T) {
	a1 := rec("a1", 0, base)
	a2 := rec("a2", 1, base.Add(time.Minute))
	b := rec("b", 2, base.Add(2*time.Minute))
	b.HookType = types.HookQuestion

	forward, err := Synthesize([]*types.AnalysisRecord{a1, a2, b})
	require.NoError(t, err)
	reversed, err := Synthesize([]*types.AnalysisRecord{b, a2, a1})
	require.NoError(t, err)

	assert.Equal(t, types.HookShock, forward.DominantHook)
	assert.Equal(t, types.HookShock, reversed.DominantHook)
}

func TestDominantHookTieBrokenByRecency(t *testing.T) {
	// Two shock hooks and two question hooks; the most recent record is a
	// question hook, so question wins the tie regardless of input order.
	records := []*types.AnalysisRecord{
		rec("a1", 0, base),
		rec("a2", 1, base.Add(time.Minute)),
		rec("b1", 2, base.Add(2*time.Minute)),
		rec("b2", 3, base.Add(3*time.Minute)),
	}
	records[2].HookType = types.HookQuestion
	records[3].HookType = types.HookQuestion

	forward, err := Synthesize(records)
	require.NoError(t, err)
	reversed, err := Synthesize([]*types.AnalysisRecord{records[3], records[1], records[2], records[0]})
	require.NoError(t, err)

	assert.Equal(t, types.HookQuestion, forward.DominantHook)
	assert.Equal(t, types.HookQuestion, reversed.DominantHook)
}

func TestPlotArcsRankedByFrequencyThenFirstSeen(t *testing.T) {
	records := []*types.AnalysisRecord{
		rec("v0", 0, base),
		rec("v1", 1, base),
		rec("v2", 2, base),
		rec("v3", 3, base),
		rec("v4", 4, base),
	}
	records[0].PlotArc = "twist_ending"
	records[1].PlotArc = "setup_payoff"
	records[2].PlotArc = "setup_payoff"
	records[3].PlotArc = "twist_ending"
	records[4].PlotArc = "slow_burn"

	bp, err := Synthesize(records)
	require.NoError(t, err)

	// twist_ending and setup_payoff both appear twice; twist_ending was
	// seen first (discovery rank 0) so it outranks setup_payoff.
	assert.Equal(t, []types.ArcFrequency{
		{Arc: "twist_ending", Count: 2},
		{Arc: "setup_payoff", Count: 2},
		{Arc: "slow_burn", Count: 1},
	}, bp.PlotArcs)
}

func TestRecurringCTAThreshold(t *testing.T) {
	records := []*types.AnalysisRecord{
		rec("v0", 0, base),
		rec("v1", 1, base),
		rec("v2", 2, base),
		rec("v3", 3, base),
	}
	records[0].CTAPatterns = []string{"follow for part 2", "comment below"}
	records[1].CTAPatterns = []string{"follow for part 2"}
	records[2].CTAPatterns = []string{"like and subscribe"}
	records[3].CTAPatterns = nil

	bp, err := Synthesize(records)
	require.NoError(t, err)

	// n=4 gives threshold min(2, ceil(1.2)) = 2: singletons drop out.
	assert.Equal(t, []types.CTAFrequency{
		{Pattern: "follow for part 2", Count: 2},
	}, bp.RecurringCTAs)
}

func TestRecurrenceThreshold(t *testing.T) {
	assert.Equal(t, 1, recurrenceThreshold(1))
	assert.Equal(t, 1, recurrenceThreshold(3))
	assert.Equal(t, 2, recurrenceThreshold(4))
	assert.Equal(t, 2, recurrenceThreshold(50))
}

func TestAveragesAndHookDefault(t *testing.T) {
	r1 := rec("v0", 0, base)
	r1.DurationSec, r1.HookSeconds = 20, 0
	r2 := rec("v1", 1, base)
	r2.DurationSec, r2.HookSeconds = 40, 0

	bp, err := Synthesize([]*types.AnalysisRecord{r1, r2})
	require.NoError(t, err)
	assert.Equal(t, 30.0, bp.AverageLengthSec)
	assert.Equal(t, defaultHookSeconds, bp.HookSeconds)
}

func TestExampleVideoIDsFollowDiscoveryOrderCappedAtFive(t *testing.T) {
	var records []*types.AnalysisRecord
	for i := 6; i >= 0; i-- {
		records = append(records, rec(string(rune('a'+i)), i, base))
	}

	bp, err := Synthesize(records)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, bp.ExampleVideoIDs)
}
