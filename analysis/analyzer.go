// Package analysis converts an extracted video into a structural
// AnalysisRecord via an LLM with schema-constrained output.
package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"

	"trend-pipeline/config"
	"trend-pipeline/llm"
	"trend-pipeline/stage"
	"trend-pipeline/types"
)

const analysisSystemPrompt = `You are an expert short-form video analyst. Given a video's metadata, transcript and frame timeline, you classify its structure: the hook device, plot arc, tone, visual style and trend category. Be precise and pick the closest category rather than inventing new ones.`

// Analyzer is the analysis-stage adapter.
type Analyzer struct {
	cfg    config.AnalysisConfig
	client openai.Client
}

// New builds the analyzer. The OpenAI key comes from the environment.
func New(cfg config.AnalysisConfig) (*Analyzer, error) {
	client, err := llm.NewClient()
	if err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg, client: client}, nil
}

func (a *Analyzer) Capabilities() stage.Capabilities {
	// Re-analyzing the same video is harmless and rate limits are common.
	return stage.Capabilities{Idempotent: true, Retryable: true}
}

// analysisResponse is the schema the model must fill.
type analysisResponse struct {
	HookType    string  `json:"hook_type" jsonschema:"enum=shock,enum=relatable_moment,enum=motivational,enum=funny_pov,enum=question,enum=visual_shock" jsonschema_description:"The opening device of the video."`
	HookText    string  `json:"hook_text" jsonschema_description:"The spoken or written hook line, empty if none."`
	HookSeconds float64 `json:"hook_seconds" jsonschema_description:"How long the hook lasts, in seconds."`

	PlotArc string `json:"plot_arc" jsonschema_description:"The narrative arc archetype, e.g. setup-escalation-punchline."`
	Tone    string `json:"tone" jsonschema_description:"Overall tone, e.g. ironic, earnest, chaotic."`
	Emotion string `json:"emotion" jsonschema_description:"Primary emotion the video targets."`

	VisualStyle  string   `json:"visual_style" jsonschema_description:"Dominant visual treatment, e.g. fast-cut energetic, cinematic slow."`
	ColorPalette []string `json:"color_palette" jsonschema_description:"Up to five dominant colors."`
	FramingStyle string   `json:"framing_style" jsonschema_description:"Framing, e.g. close-up selfie, wide gameplay."`
	CameraMotion string   `json:"camera_motion" jsonschema_description:"Camera behavior, e.g. static, whip-pan."`

	TrendCategory string `json:"trend_category" jsonschema:"enum=motivational,enum=gaming,enum=animated_skits,enum=sigma_edits,enum=funny_pov,enum=relationship,enum=meme,enum=other" jsonschema_description:"Content niche."`
	AudioStyle    string `json:"audio_style" jsonschema_description:"Audio treatment, e.g. phonk beat, voiceover, trending sound."`

	CTAPatterns []string `json:"cta_patterns" jsonschema_description:"Call-to-action patterns present, e.g. follow-for-part-2, comment-bait question."`
}

var analysisSchema = llm.Schema[analysisResponse]()

// Analyze classifies one extracted video. The returned record is
// immutable; the caller stamps DiscoveryRank before fan-out.
func (a *Analyzer) Analyze(ctx context.Context, video *types.VideoRecord, ex *stage.Extraction) (*types.AnalysisRecord, error) {
	if ex == nil || (len(ex.Frames) == 0 && ex.Transcript == "") {
		return nil, stage.Permanentf("analysis", fmt.Errorf("video %s: nothing to analyze", video.ID))
	}

	log.Printf("[analysis] Analyzing %s (%d frames, transcript %d chars)", video.ID, len(ex.Frames), len(ex.Transcript))

	resp, err := llm.Complete[analysisResponse](
		ctx, a.client, "analysis", a.cfg.Model,
		analysisSystemPrompt, a.buildPrompt(video, ex), analysisSchema,
	)
	if err != nil {
		return nil, err
	}

	return &types.AnalysisRecord{
		VideoID:       video.ID,
		AnalyzedAt:    time.Now().UTC(),
		HookType:      parseHookType(resp.HookType),
		HookText:      resp.HookText,
		HookSeconds:   resp.HookSeconds,
		PlotArc:       resp.PlotArc,
		Tone:          resp.Tone,
		Emotion:       resp.Emotion,
		VisualStyle:   resp.VisualStyle,
		ColorPalette:  resp.ColorPalette,
		FramingStyle:  resp.FramingStyle,
		CameraMotion:  resp.CameraMotion,
		TrendCategory: parseTrendCategory(resp.TrendCategory),
		AudioStyle:    resp.AudioStyle,
		CTAPatterns:   resp.CTAPatterns,
		DurationSec:   video.DurationSec,
	}, nil
}

func (a *Analyzer) buildPrompt(video *types.VideoRecord, ex *stage.Extraction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Video %q (%.0fs), channel %s, hashtags: %s\n",
		video.Title, video.DurationSec, video.ChannelName, strings.Join(video.Hashtags, " "))

	maxFrames := a.cfg.MaxFrames
	if maxFrames <= 0 || maxFrames > len(ex.Frames) {
		maxFrames = len(ex.Frames)
	}
	if maxFrames > 0 {
		b.WriteString("\nFrame timeline:\n")
		for _, f := range ex.Frames[:maxFrames] {
			fmt.Fprintf(&b, "- t=%.1fs: %s\n", f.Timestamp, f.Path)
		}
	}

	if ex.Transcript != "" {
		b.WriteString("\nTranscript:\n")
		b.WriteString(ex.Transcript)
	} else {
		b.WriteString("\nNo transcript available; rely on metadata and frame pacing.")
	}
	return b.String()
}

func parseHookType(s string) types.HookType {
	switch types.HookType(s) {
	case types.HookShock, types.HookRelatable, types.HookMotivational,
		types.HookFunnyPOV, types.HookQuestion, types.HookVisualShock:
		return types.HookType(s)
	}
	return types.HookShock
}

func parseTrendCategory(s string) types.TrendCategory {
	switch types.TrendCategory(s) {
	case types.CategoryMotivational, types.CategoryGaming, types.CategoryAnimatedSkit,
		types.CategorySigmaEdit, types.CategoryFunnyPOV, types.CategoryRelationship,
		types.CategoryMeme, types.CategoryOther:
		return types.TrendCategory(s)
	}
	return types.CategoryOther
}
