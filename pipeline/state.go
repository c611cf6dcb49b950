// Package pipeline sequences the trend pipeline's stages into one run:
// discovery, extraction, analysis, synthesis, script generation, video
// production and publishing. It owns run state, retries, fan-out
// concurrency, rate limits and failure reporting; stages are reached only
// through the capability contracts in package stage.
package pipeline

import (
	"fmt"
	"time"

	"trend-pipeline/config"
	"trend-pipeline/stage"
	"trend-pipeline/types"
)

// State is one position of the run's state machine. Transitions are
// strictly forward on success; Failed is terminal and reachable from any
// non-terminal state.
type State string

const (
	StateDiscovering      State = "discovering"
	StateExtracting       State = "extracting"
	StateAnalyzing        State = "analyzing"
	StateSynthesizing     State = "synthesizing"
	StateScriptGenerating State = "script_generating"
	StateProducingVideo   State = "producing_video"
	StatePublishing       State = "publishing"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// forward is the success path, in order.
var forward = []State{
	StateDiscovering,
	StateExtracting,
	StateAnalyzing,
	StateSynthesizing,
	StateScriptGenerating,
	StateProducingVideo,
	StatePublishing,
	StateCompleted,
}

// Terminal reports whether the state machine can move on from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ItemCount tallies per-item outcomes inside a fan-out stage.
type ItemCount struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Run is the process-scoped state of one pipeline execution. It is
// created at run start, mutated only by the orchestrator as stages
// complete, and never shared across concurrent runs. On failure it
// carries every prior stage's output so a caller can resume downstream
// work with cached upstream data.
type Run struct {
	ID  string `json:"id"`
	Dir string `json:"-"`

	Mode      config.Mode `json:"mode"`
	State     State       `json:"state"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at,omitempty"`

	// LastGood is the furthest state that completed before a failure.
	LastGood State `json:"last_good,omitempty"`

	Videos      map[string]*types.VideoRecord `json:"videos,omitempty"`
	RankedIDs   []string                      `json:"ranked_ids,omitempty"`
	Extractions map[string]*stage.Extraction  `json:"extractions,omitempty"`
	Analyses    []*types.AnalysisRecord       `json:"analyses,omitempty"`
	Blueprint   *types.TrendBlueprint         `json:"blueprint,omitempty"`
	Script      *types.GeneratedScript        `json:"script,omitempty"`
	Production  *types.ProductionResult       `json:"production,omitempty"`
	Publication *types.PublishResult          `json:"publication,omitempty"`

	Items map[State]*ItemCount `json:"items,omitempty"`
	Error string               `json:"error,omitempty"`

	// Transitions records every state entered, in order. Tests assert on
	// it; operators read it out of the run snapshot.
	Transitions []State `json:"transitions"`
}

func newRun(id string, mode config.Mode) *Run {
	r := &Run{
		ID:        id,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
		Items:     map[State]*ItemCount{},
	}
	r.enter(StateDiscovering)
	return r
}

func (r *Run) enter(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

func (r *Run) countItem(s State, err error) {
	c, ok := r.Items[s]
	if !ok {
		c = &ItemCount{}
		r.Items[s] = c
	}
	if err != nil {
		c.Failed++
	} else {
		c.Succeeded++
	}
}

// RunFailed is the terminal error of a failed run. It names the stage
// that failed, wraps the underlying error, and carries the run with all
// partial results.
type RunFailed struct {
	Stage State
	Run   *Run
	Err   error
}

func (e *RunFailed) Error() string {
	return fmt.Sprintf("run %s failed at %s: %v", e.Run.ID, e.Stage, e.Err)
}

func (e *RunFailed) Unwrap() error { return e.Err }
