package types

import (
	"time"
)

// TrendCategory buckets a short into one of the content niches we track.
type TrendCategory string

const (
	CategoryMotivational TrendCategory = "motivational"
	CategoryGaming       TrendCategory = "gaming"
	CategoryAnimatedSkit TrendCategory = "animated_skits"
	CategorySigmaEdit    TrendCategory = "sigma_edits"
	CategoryFunnyPOV     TrendCategory = "funny_pov"
	CategoryRelationship TrendCategory = "relationship"
	CategoryMeme         TrendCategory = "meme"
	CategoryOther        TrendCategory = "other"
)

// HookType classifies the opening device of a short.
type HookType string

const (
	HookShock        HookType = "shock"
	HookRelatable    HookType = "relatable_moment"
	HookMotivational HookType = "motivational"
	HookFunnyPOV     HookType = "funny_pov"
	HookQuestion     HookType = "question"
	HookVisualShock  HookType = "visual_shock"
)

// MetricsSample is a point-in-time snapshot of a video's public counters.
type MetricsSample struct {
	Views     int64     `json:"views"`
	Likes     int64     `json:"likes"`
	Comments  int64     `json:"comments"`
	SampledAt time.Time `json:"sampled_at"`
}

// VideoRecord is one discovered candidate short. It is immutable after
// creation except for appended metric samples.
type VideoRecord struct {
	ID          string          `json:"id"`
	URL         string          `json:"url"`
	Title       string          `json:"title"`
	ChannelID   string          `json:"channel_id"`
	ChannelName string          `json:"channel_name"`
	DurationSec float64         `json:"duration_sec"`
	PublishedAt time.Time       `json:"published_at"`
	Hashtags    []string        `json:"hashtags,omitempty"`
	Samples     []MetricsSample `json:"samples"`
}

// AppendSample records another counter snapshot. Samples must arrive in
// chronological order; out-of-order snapshots are dropped.
func (v *VideoRecord) AppendSample(s MetricsSample) {
	if n := len(v.Samples); n > 0 && !s.SampledAt.After(v.Samples[n-1].SampledAt) {
		return
	}
	v.Samples = append(v.Samples, s)
}

// LatestSample returns the most recent counter snapshot.
func (v *VideoRecord) LatestSample() (MetricsSample, bool) {
	if len(v.Samples) == 0 {
		return MetricsSample{}, false
	}
	return v.Samples[len(v.Samples)-1], true
}

// GrowthRate computes fractional view growth between the first and last
// sample. It is only defined when two time-separated samples exist; a
// single snapshot carries no trend velocity, so ok is false rather than
// the rate reading as zero.
func (v *VideoRecord) GrowthRate() (float64, bool) {
	if len(v.Samples) < 2 {
		return 0, false
	}
	first := v.Samples[0]
	last := v.Samples[len(v.Samples)-1]
	if !last.SampledAt.After(first.SampledAt) {
		return 0, false
	}
	if first.Views <= 0 {
		return 0, false
	}
	return float64(last.Views-first.Views) / float64(first.Views), true
}

// EngagementRatio is (likes+comments)/views from the latest sample.
func (v *VideoRecord) EngagementRatio() float64 {
	last, ok := v.LatestSample()
	if !ok || last.Views <= 0 {
		return 0
	}
	return float64(last.Likes+last.Comments) / float64(last.Views)
}

// AnalysisRecord holds the structural analysis of one video. Created once
// by the analysis stage and immutable thereafter. VideoID is a back
// reference to the VideoRecord, not ownership.
type AnalysisRecord struct {
	VideoID       string    `json:"video_id"`
	DiscoveryRank int       `json:"discovery_rank"`
	AnalyzedAt    time.Time `json:"analyzed_at"`

	HookType    HookType `json:"hook_type"`
	HookText    string   `json:"hook_text,omitempty"`
	HookSeconds float64  `json:"hook_seconds"`

	PlotArc string `json:"plot_arc"`
	Tone    string `json:"tone"`
	Emotion string `json:"emotion"`

	VisualStyle  string   `json:"visual_style"`
	ColorPalette []string `json:"color_palette,omitempty"`
	FramingStyle string   `json:"framing_style,omitempty"`
	CameraMotion string   `json:"camera_motion,omitempty"`

	TrendCategory TrendCategory `json:"trend_category"`
	AudioStyle    string        `json:"audio_style"`

	CTAPatterns []string `json:"cta_patterns,omitempty"`

	DurationSec float64 `json:"duration_sec"`
}

// ArcFrequency is one entry of a blueprint's ranked plot-arc list.
type ArcFrequency struct {
	Arc   string `json:"arc"`
	Count int    `json:"count"`
}

// CTAFrequency is a recurring call-to-action pattern with how often it
// appeared across the source records.
type CTAFrequency struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// TrendBlueprint is the statistical aggregate of a batch of analyses,
// used as the template for script generation. Never built from zero
// records.
type TrendBlueprint struct {
	Name     string        `json:"name"`
	Category TrendCategory `json:"category"`

	AverageLengthSec float64 `json:"average_length_sec"`
	HookSeconds      float64 `json:"hook_seconds"`

	DominantHook        HookType       `json:"dominant_hook"`
	PlotArcs            []ArcFrequency `json:"plot_arcs"`
	DominantVisualStyle string         `json:"dominant_visual_style"`
	DominantAudioStyle  string         `json:"dominant_audio_style"`
	RecurringCTAs       []CTAFrequency `json:"recurring_ctas,omitempty"`

	ExampleVideoIDs []string `json:"example_video_ids,omitempty"`

	// SourceCount is the number of analyses this blueprint aggregates.
	// Downstream consumers discount blueprints built from few records.
	SourceCount int     `json:"source_count"`
	Confidence  float64 `json:"confidence"`
}

// Shot is one descriptor of a generated script's ordered shot list.
type Shot struct {
	Index        int     `json:"index"`
	Description  string  `json:"description"`
	Prompt       string  `json:"prompt"`
	Seconds      float64 `json:"seconds"`
	CameraMotion string  `json:"camera_motion,omitempty"`
}

// GeneratedScript is a new script produced from a blueprint. BlueprintName
// links back to the source blueprint by identifier.
type GeneratedScript struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	BlueprintName string   `json:"blueprint_name"`
	StyleTag      string   `json:"style_tag"`
	Shots         []Shot   `json:"shots"`
	Captions      []string `json:"captions,omitempty"`
	EstimatedSec  float64  `json:"estimated_sec"`
}

// ProductionStatus is the terminal state of a backend generation task.
type ProductionStatus string

const (
	ProductionSucceeded ProductionStatus = "succeeded"
	ProductionFailed    ProductionStatus = "failed"
)

// ProductionResult records which backend produced (or failed to produce)
// the artifact for a script.
type ProductionResult struct {
	Backend     string           `json:"backend"`
	TaskID      string           `json:"task_id"`
	Status      ProductionStatus `json:"status"`
	ArtifactRef string           `json:"artifact_ref,omitempty"`
	Degraded    bool             `json:"degraded,omitempty"`
}

// PublishMetadata is what the publishing stage attaches to the artifact.
type PublishMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags,omitempty"`
	Platform    string   `json:"platform"`
	ScheduledAt string   `json:"scheduled_at,omitempty"`
}

// PublishResult is the outcome of publishing one artifact.
type PublishResult struct {
	Platform    string `json:"platform"`
	PostID      string `json:"post_id"`
	Destination string `json:"destination"`
}
