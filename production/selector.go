// Package production turns a generated script into a finished video via
// heterogeneous generation backends behind a uniform submit/poll surface.
// Backend choice is a pure function of declared affinity data and the
// health snapshot the orchestrator supplies; no live probing here.
package production

import (
	"sort"

	"trend-pipeline/stage"
)

// Health is the orchestrator-supplied availability of one backend.
type Health string

const (
	HealthAvailable   Health = "available"
	HealthDegraded    Health = "degraded"
	HealthUnavailable Health = "unavailable"
)

// Selection names the chosen backend. Degraded flags that the top-affinity
// choice is impaired; Fallback names the next-highest fully available
// backend, if one exists, so the caller can decide whether to proceed
// degraded or step down.
type Selection struct {
	Backend  string
	Degraded bool
	Fallback string
}

// Select picks the highest-affinity backend for the style that is not
// unavailable. A backend missing from the health map counts as
// unavailable. When every configured backend is unavailable the error is
// NoAvailableBackendError.
func Select(style string, affinities map[string]map[string]float64, health map[string]Health) (Selection, error) {
	type ranked struct {
		name     string
		affinity float64
	}

	candidates := make([]ranked, 0, len(affinities))
	for name, table := range affinities {
		if health[name] == HealthUnavailable || health[name] == "" {
			continue
		}
		candidates = append(candidates, ranked{name: name, affinity: table[style]})
	}
	if len(candidates) == 0 {
		return Selection{}, &stage.NoAvailableBackendError{Style: style}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].affinity != candidates[j].affinity {
			return candidates[i].affinity > candidates[j].affinity
		}
		return candidates[i].name < candidates[j].name
	})

	sel := Selection{Backend: candidates[0].name}
	if health[candidates[0].name] == HealthDegraded {
		sel.Degraded = true
		for _, c := range candidates[1:] {
			if health[c.name] == HealthAvailable {
				sel.Fallback = c.name
				break
			}
		}
	}
	return sel, nil
}
