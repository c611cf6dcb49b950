// Package synthesis aggregates a batch of per-video analyses into one
// statistically representative trend blueprint. It is pure computation:
// records go in as an unordered set and every ordering decision inside is
// an explicit, documented tie-break.
package synthesis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"trend-pipeline/stage"
	"trend-pipeline/types"
)

// defaultHookSeconds is used when no record reports a hook length.
const defaultHookSeconds = 2.5

// maxExampleVideos caps how many source videos a blueprint cites.
const maxExampleVideos = 5

// Synthesize aggregates a non-empty set of analysis records into a
// blueprint. An empty set is a reportable error, never a degenerate
// blueprint.
//
// Tie-break policy: categorical modes (hook, visual style, trend category,
// audio style) break frequency ties by recency: the most recently
// analyzed record wins, because recency reflects current drift in the
// trend. Plot arcs are ranked by frequency descending with ties broken by
// first-seen order, where "first seen" means original discovery rank, not
// analysis completion order (completion order is concurrency noise).
func Synthesize(records []*types.AnalysisRecord) (*types.TrendBlueprint, error) {
	if len(records) == 0 {
		return nil, &stage.InsufficientDataError{Op: "synthesize", Reason: "no analysis records"}
	}

	category := types.TrendCategory(modeByRecency(records, func(r *types.AnalysisRecord) string {
		return string(r.TrendCategory)
	}))

	bp := &types.TrendBlueprint{
		Name:     fmt.Sprintf("%s_trend", category),
		Category: category,

		AverageLengthSec: meanDuration(records),
		HookSeconds:      meanHookSeconds(records),

		DominantHook: types.HookType(modeByRecency(records, func(r *types.AnalysisRecord) string {
			return string(r.HookType)
		})),
		PlotArcs: rankPlotArcs(records),
		DominantVisualStyle: modeByRecency(records, func(r *types.AnalysisRecord) string {
			return r.VisualStyle
		}),
		DominantAudioStyle: modeByRecency(records, func(r *types.AnalysisRecord) string {
			return r.AudioStyle
		}),
		RecurringCTAs: recurringCTAs(records),

		ExampleVideoIDs: exampleVideoIDs(records),

		SourceCount: len(records),
		Confidence:  math.Min(float64(len(records))/10.0, 1.0),
	}
	return bp, nil
}

func meanDuration(records []*types.AnalysisRecord) float64 {
	var sum float64
	for _, r := range records {
		sum += r.DurationSec
	}
	return sum / float64(len(records))
}

func meanHookSeconds(records []*types.AnalysisRecord) float64 {
	var sum float64
	var n int
	for _, r := range records {
		if r.HookSeconds > 0 {
			sum += r.HookSeconds
			n++
		}
	}
	if n == 0 {
		return defaultHookSeconds
	}
	return sum / float64(n)
}

// modeByRecency returns the most frequent value of key across records,
// breaking frequency ties by the most recently analyzed record carrying
// that value. Empty keys are ignored.
func modeByRecency(records []*types.AnalysisRecord, key func(*types.AnalysisRecord) string) string {
	type stat struct {
		count  int
		latest time.Time
	}
	stats := map[string]*stat{}
	for _, r := range records {
		k := key(r)
		if k == "" {
			continue
		}
		s, ok := stats[k]
		if !ok {
			s = &stat{}
			stats[k] = s
		}
		s.count++
		if r.AnalyzedAt.After(s.latest) {
			s.latest = r.AnalyzedAt
		}
	}

	var best string
	var bestStat *stat
	for k, s := range stats {
		switch {
		case bestStat == nil,
			s.count > bestStat.count,
			s.count == bestStat.count && s.latest.After(bestStat.latest),
			// Deterministic last resort for identical count and timestamp.
			s.count == bestStat.count && s.latest.Equal(bestStat.latest) && k < best:
			best, bestStat = k, s
		}
	}
	return best
}

// rankPlotArcs builds the full ranked arc list, not just the mode.
// Script generation samples from this ranking so consecutive runs do not
// collapse onto near-duplicate scripts.
func rankPlotArcs(records []*types.AnalysisRecord) []types.ArcFrequency {
	type stat struct {
		count     int
		firstSeen int
	}
	stats := map[string]*stat{}
	for _, r := range records {
		if r.PlotArc == "" {
			continue
		}
		s, ok := stats[r.PlotArc]
		if !ok {
			s = &stat{firstSeen: r.DiscoveryRank}
			stats[r.PlotArc] = s
		}
		s.count++
		if r.DiscoveryRank < s.firstSeen {
			s.firstSeen = r.DiscoveryRank
		}
	}

	arcs := make([]string, 0, len(stats))
	for arc := range stats {
		arcs = append(arcs, arc)
	}
	sort.Slice(arcs, func(i, j int) bool {
		si, sj := stats[arcs[i]], stats[arcs[j]]
		if si.count != sj.count {
			return si.count > sj.count
		}
		if si.firstSeen != sj.firstSeen {
			return si.firstSeen < sj.firstSeen
		}
		return arcs[i] < arcs[j]
	})

	out := make([]types.ArcFrequency, len(arcs))
	for i, arc := range arcs {
		out[i] = types.ArcFrequency{Arc: arc, Count: stats[arc].count}
	}
	return out
}

// recurringCTAs unions CTA patterns across records with frequency
// annotation. A pattern is retained only when it clears the recurrence
// threshold (at least 2 records, or at least 30% of records, whichever
// is lower) so a single outlier cannot fabricate a "pattern". The
// threshold is a tunable default, not a law.
func recurringCTAs(records []*types.AnalysisRecord) []types.CTAFrequency {
	counts := map[string]int{}
	for _, r := range records {
		seen := map[string]bool{}
		for _, p := range r.CTAPatterns {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			counts[p]++
		}
	}

	threshold := recurrenceThreshold(len(records))
	var patterns []string
	for p, c := range counts {
		if c >= threshold {
			patterns = append(patterns, p)
		}
	}
	sort.Slice(patterns, func(i, j int) bool {
		if counts[patterns[i]] != counts[patterns[j]] {
			return counts[patterns[i]] > counts[patterns[j]]
		}
		return patterns[i] < patterns[j]
	})

	out := make([]types.CTAFrequency, len(patterns))
	for i, p := range patterns {
		out[i] = types.CTAFrequency{Pattern: p, Count: counts[p]}
	}
	return out
}

func recurrenceThreshold(n int) int {
	byShare := int(math.Ceil(0.30 * float64(n)))
	if byShare < 1 {
		byShare = 1
	}
	if byShare < 2 {
		return byShare
	}
	return 2
}

// exampleVideoIDs cites up to five source videos, in discovery order.
func exampleVideoIDs(records []*types.AnalysisRecord) []string {
	sorted := make([]*types.AnalysisRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DiscoveryRank < sorted[j].DiscoveryRank
	})
	n := len(sorted)
	if n > maxExampleVideos {
		n = maxExampleVideos
	}
	ids := make([]string, 0, n)
	for _, r := range sorted[:n] {
		ids = append(ids, r.VideoID)
	}
	return ids
}
