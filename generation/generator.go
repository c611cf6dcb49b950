// Package generation writes a new script from a trend blueprint.
package generation

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"

	"trend-pipeline/config"
	"trend-pipeline/llm"
	"trend-pipeline/stage"
	"trend-pipeline/types"
)

const scriptSystemPrompt = `You are a short-form video scriptwriter. You write original scripts that follow a trend's proven structure without copying any specific video. You receive a trend blueprint: the dominant hook style, the target plot arc, visual style, pacing and call-to-action patterns. Produce a shot list where every shot has a concrete visual description and a text-to-video generation prompt with explicit camera movement.`

// Generator is the script-generation adapter.
type Generator struct {
	cfg    config.GenerationConfig
	client openai.Client
	rng    *rand.Rand
}

// New builds the generator. Seed fixes the plot-arc sampling for tests;
// pass a random seed in production wiring.
func New(cfg config.GenerationConfig, seed int64) (*Generator, error) {
	client, err := llm.NewClient()
	if err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, client: client, rng: rand.New(rand.NewSource(seed))}, nil
}

func (g *Generator) Capabilities() stage.Capabilities {
	return stage.Capabilities{Idempotent: false, Retryable: true}
}

type scriptResponse struct {
	Title    string         `json:"title" jsonschema_description:"Punchy video title."`
	Shots    []shotResponse `json:"shots" jsonschema_description:"Ordered shot list, 3 to 6 shots."`
	Captions []string       `json:"captions" jsonschema_description:"On-screen caption lines, in display order."`
}

type shotResponse struct {
	Description  string  `json:"description" jsonschema_description:"What happens in the shot."`
	Prompt       string  `json:"prompt" jsonschema_description:"Text-to-video prompt for this shot, with camera movement."`
	Seconds      float64 `json:"seconds" jsonschema_description:"Shot length in seconds."`
	CameraMotion string  `json:"camera_motion" jsonschema_description:"Camera movement, e.g. dolly-in, whip-pan."`
}

var scriptSchema = llm.Schema[scriptResponse]()

// GenerateScript produces one script from the blueprint. The plot arc is
// sampled from the blueprint's frequency-ranked arc list, weighted by
// count, so repeated runs over the same trend vary instead of collapsing
// onto the top arc every time.
func (g *Generator) GenerateScript(ctx context.Context, blueprint *types.TrendBlueprint, brandStyle string) (*types.GeneratedScript, error) {
	if blueprint == nil || blueprint.SourceCount == 0 {
		return nil, stage.Permanentf("generation", fmt.Errorf("blueprint missing or empty"))
	}
	if blueprint.SourceCount < g.cfg.MinConfidenceRecords {
		log.Printf("[generation] ⚠️  Blueprint %q built from only %d records, low confidence", blueprint.Name, blueprint.SourceCount)
	}

	arc := g.sampleArc(blueprint.PlotArcs)
	log.Printf("[generation] Generating script for %q (arc: %s)", blueprint.Name, arc)

	resp, err := llm.Complete[scriptResponse](
		ctx, g.client, "generation", g.cfg.Model,
		scriptSystemPrompt, buildBlueprintPrompt(blueprint, arc, brandStyle), scriptSchema,
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Shots) == 0 {
		return nil, stage.Permanentf("generation", fmt.Errorf("model returned no shots"))
	}

	script := &types.GeneratedScript{
		ID:            uuid.NewString(),
		Title:         resp.Title,
		BlueprintName: blueprint.Name,
		StyleTag:      blueprint.DominantVisualStyle,
		Captions:      resp.Captions,
	}
	for i, shot := range resp.Shots {
		script.Shots = append(script.Shots, types.Shot{
			Index:        i,
			Description:  shot.Description,
			Prompt:       shot.Prompt,
			Seconds:      shot.Seconds,
			CameraMotion: shot.CameraMotion,
		})
		script.EstimatedSec += shot.Seconds
	}
	return script, nil
}

// sampleArc picks an arc with probability proportional to its frequency.
func (g *Generator) sampleArc(arcs []types.ArcFrequency) string {
	if len(arcs) == 0 {
		return "setup-escalation-payoff"
	}
	total := 0
	for _, a := range arcs {
		total += a.Count
	}
	if total <= 0 {
		return arcs[0].Arc
	}
	pick := g.rng.Intn(total)
	for _, a := range arcs {
		pick -= a.Count
		if pick < 0 {
			return a.Arc
		}
	}
	return arcs[len(arcs)-1].Arc
}

func buildBlueprintPrompt(bp *types.TrendBlueprint, arc, brandStyle string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trend: %s (category %s, aggregated from %d videos, confidence %.2f)\n", bp.Name, bp.Category, bp.SourceCount, bp.Confidence)
	fmt.Fprintf(&b, "Target length: %.0f seconds. Hook style: %s, hook must land within %.1f seconds.\n", bp.AverageLengthSec, bp.DominantHook, bp.HookSeconds)
	fmt.Fprintf(&b, "Plot arc to follow: %s\n", arc)
	fmt.Fprintf(&b, "Visual style: %s. Audio style: %s.\n", bp.DominantVisualStyle, bp.DominantAudioStyle)
	if len(bp.RecurringCTAs) > 0 {
		ctas := make([]string, len(bp.RecurringCTAs))
		for i, c := range bp.RecurringCTAs {
			ctas[i] = c.Pattern
		}
		fmt.Fprintf(&b, "End with one of these call-to-action patterns: %s\n", strings.Join(ctas, ", "))
	}
	if brandStyle != "" {
		fmt.Fprintf(&b, "Brand style to inject: %s\n", brandStyle)
	}
	b.WriteString("Write an original script following this structure.")
	return b.String()
}
