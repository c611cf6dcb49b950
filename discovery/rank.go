// Package discovery finds candidate shorts and orders them by trend
// velocity. Sources produce VideoRecords; Rank turns a sampled batch into
// a most-viral-first sequence of video IDs.
package discovery

import (
	"sort"

	"trend-pipeline/types"
)

// RankOptions tunes the virality ranking. Zero weights fall back to the
// 70/30 growth/engagement split.
type RankOptions struct {
	// MinGrowthRate is the floor below which a candidate is excluded
	// entirely (default 0.20 per sampling window).
	MinGrowthRate float64
	// GrowthWeight and EngagementWeight combine into the virality score.
	GrowthWeight     float64
	EngagementWeight float64
}

func (o RankOptions) normalized() RankOptions {
	if o.GrowthWeight == 0 && o.EngagementWeight == 0 {
		o.GrowthWeight = 0.7
		o.EngagementWeight = 0.3
	}
	return o
}

type scored struct {
	id     string
	score  float64
	views  int64
}

// Ranking is a finite, non-restartable cursor over ranked video IDs.
// Callers may materialize it with Collect.
type Ranking struct {
	ids []string
	pos int
}

// Next returns the next most-viral video ID.
func (r *Ranking) Next() (string, bool) {
	if r.pos >= len(r.ids) {
		return "", false
	}
	id := r.ids[r.pos]
	r.pos++
	return id, true
}

// Len reports how many candidates remain.
func (r *Ranking) Len() int { return len(r.ids) - r.pos }

// Collect drains the remaining sequence into a slice.
func (r *Ranking) Collect() []string {
	out := make([]string, 0, r.Len())
	for id, ok := r.Next(); ok; id, ok = r.Next() {
		out = append(out, id)
	}
	return out
}

// Rank scores candidates and orders them most viral first. Virality is a
// weighted combination of view growth rate over the sampling interval and
// engagement ratio. Candidates below the minimum growth rate are excluded;
// candidates with an undefined growth rate (a single sample) are excluded
// too: they carry no velocity evidence, so they are absent rather than
// ranked last. Ties break by absolute view count descending.
func Rank(records map[string]*types.VideoRecord, opts RankOptions) *Ranking {
	opts = opts.normalized()

	candidates := make([]scored, 0, len(records))
	for id, rec := range records {
		growth, ok := rec.GrowthRate()
		if !ok {
			continue
		}
		if growth < opts.MinGrowthRate {
			continue
		}
		last, _ := rec.LatestSample()
		candidates = append(candidates, scored{
			id:    id,
			score: opts.GrowthWeight*growth + opts.EngagementWeight*rec.EngagementRatio(),
			views: last.Views,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].views != candidates[j].views {
			return candidates[i].views > candidates[j].views
		}
		return candidates[i].id < candidates[j].id
	})

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return &Ranking{ids: ids}
}
