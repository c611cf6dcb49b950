// Package stage defines the capability contract every pipeline stage
// adapter implements, plus the error taxonomy the orchestrator branches
// on. The orchestrator never depends on a concrete adapter, only on the
// interfaces and error classes declared here, which is what lets
// production and publishing backends be swapped without touching
// orchestration logic.
package stage

import (
	"context"

	"trend-pipeline/types"
)

// Capabilities declares how the orchestrator may treat an adapter.
type Capabilities struct {
	// Idempotent means a repeated call with the same input produces the
	// same effect, so a retry can never double-apply a side effect.
	Idempotent bool
	// Retryable means a transient failure may be retried automatically
	// within the configured budget.
	Retryable bool
}

// DiscoverySource yields raw candidate videos for ranking.
type DiscoverySource interface {
	Search(ctx context.Context) ([]*types.VideoRecord, error)
	Capabilities() Capabilities
}

// FrameRef points at one extracted frame image.
type FrameRef struct {
	Path      string  `json:"path"`
	Timestamp float64 `json:"timestamp"`
}

// Extraction is the output of the extraction stage for one video.
type Extraction struct {
	VideoID    string     `json:"video_id"`
	Frames     []FrameRef `json:"frames"`
	Transcript string     `json:"transcript,omitempty"`
}

// Extractor downloads a video and produces frames plus transcript.
type Extractor interface {
	Extract(ctx context.Context, videoID string) (*Extraction, error)
	Capabilities() Capabilities
}

// Analyzer converts one extraction into a structural analysis record.
type Analyzer interface {
	Analyze(ctx context.Context, video *types.VideoRecord, ex *Extraction) (*types.AnalysisRecord, error)
	Capabilities() Capabilities
}

// ScriptGenerator writes a new script from a trend blueprint.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, blueprint *types.TrendBlueprint, brandStyle string) (*types.GeneratedScript, error)
	Capabilities() Capabilities
}

// TaskState is the coarse lifecycle of a backend generation task.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// TaskStatus is a backend's answer to one poll.
type TaskStatus struct {
	State       TaskState
	ArtifactRef string
}

// Backend is one video-generation vendor behind the uniform submit/poll
// surface. Polling cadence and timeout belong to the orchestrator, not
// the adapter.
type Backend interface {
	Name() string
	Submit(ctx context.Context, script *types.GeneratedScript) (taskID string, err error)
	Poll(ctx context.Context, taskID string) (TaskStatus, error)
	Capabilities() Capabilities
}

// Publisher pushes a finished artifact to a platform. The dry-run local
// sink implements the same contract as the live publishers.
type Publisher interface {
	Publish(ctx context.Context, artifactRef string, meta types.PublishMetadata) (*types.PublishResult, error)
	Capabilities() Capabilities
}
