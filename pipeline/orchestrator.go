package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"trend-pipeline/config"
	"trend-pipeline/discovery"
	"trend-pipeline/production"
	"trend-pipeline/stage"
	"trend-pipeline/synthesis"
	"trend-pipeline/types"
)

// HealthFunc supplies the orchestrator's view of backend health at
// selection time. The orchestrator owns monitoring; the selector stays a
// pure function of this snapshot.
type HealthFunc func(ctx context.Context) map[string]production.Health

// Deps wires the stage adapters into the orchestrator. Everything is an
// interface from package stage, so swapping a backend or running against
// fakes never touches orchestration logic. Mode is threaded through this
// wiring (dry-run installs the local sink as Publisher), never checked ad
// hoc inside the orchestrator.
type Deps struct {
	Sources   []stage.DiscoverySource
	Extractor stage.Extractor
	Analyzer  stage.Analyzer
	Generator stage.ScriptGenerator
	Backends  map[string]stage.Backend
	Publisher stage.Publisher
	Health    HealthFunc
}

// Orchestrator executes one pipeline run at a time. The worker pool and
// per-backend rate limiters it owns are scoped to a single run and never
// shared across concurrent runs.
type Orchestrator struct {
	cfg        *config.Config
	deps       Deps
	outputRoot string
	limiters   map[string]*rate.Limiter
}

// New builds an orchestrator. Each run gets its own snapshot directory
// under outputRoot; empty disables snapshots.
func New(cfg *config.Config, deps Deps, outputRoot string) *Orchestrator {
	if deps.Health == nil {
		deps.Health = staticHealth(cfg)
	}
	limiters := map[string]*rate.Limiter{}
	for name, backend := range cfg.Production.Backends {
		limit := rate.Inf
		if backend.RatePerMinute > 0 {
			limit = rate.Limit(float64(backend.RatePerMinute) / 60.0)
		}
		limiters[name] = rate.NewLimiter(limit, 1)
	}
	return &Orchestrator{cfg: cfg, deps: deps, outputRoot: outputRoot, limiters: limiters}
}

// staticHealth marks every configured backend available; live health
// probing plugs in through Deps.Health.
func staticHealth(cfg *config.Config) HealthFunc {
	return func(context.Context) map[string]production.Health {
		health := map[string]production.Health{}
		for name := range cfg.Production.Backends {
			health[name] = production.HealthAvailable
		}
		return health
	}
}

func (o *Orchestrator) policy() retryPolicy {
	return retryPolicy{
		budget:      o.cfg.Pipeline.RetryBudget,
		baseBackoff: o.cfg.Pipeline.RetryBaseBackoff,
		timeout:     o.cfg.Pipeline.AdapterTimeout,
	}
}

// Execute runs the full pipeline. On failure the returned Run still
// carries every completed stage's output, and the error is a *RunFailed
// naming the failed stage and error class.
func (o *Orchestrator) Execute(ctx context.Context) (*Run, error) {
	run := newRun(uuid.NewString()[:8], o.cfg.Pipeline.Mode)
	if o.outputRoot != "" {
		run.Dir = filepath.Join(o.outputRoot, run.ID)
		if err := os.MkdirAll(run.Dir, 0755); err != nil {
			return o.fail(run, fmt.Errorf("create run dir: %w", err))
		}
	}
	log.Printf("🎬 Pipeline run %s starting (mode: %s)", run.ID, run.Mode)

	workers := newPool(o.cfg.Pipeline.Concurrency)
	defer workers.stop()

	// ── Discovering ──
	if err := o.discover(ctx, run); err != nil {
		return o.fail(run, err)
	}
	o.snapshot(run, "videos.json", run.Videos)

	// ── Extracting ──
	run.enter(StateExtracting)
	o.extract(ctx, workers, run)

	// ── Analyzing ──
	run.enter(StateAnalyzing)
	o.analyze(ctx, workers, run)
	o.snapshot(run, "analyses.json", run.Analyses)

	if err := ctx.Err(); err != nil {
		return o.fail(run, err)
	}

	// ── Synthesizing ──
	run.enter(StateSynthesizing)
	blueprint, err := synthesis.Synthesize(run.Analyses)
	if err != nil {
		return o.fail(run, err)
	}
	run.Blueprint = blueprint
	o.snapshot(run, "blueprint.json", blueprint)
	log.Printf("[pipeline] Blueprint %q from %d records (confidence %.2f)", blueprint.Name, blueprint.SourceCount, blueprint.Confidence)

	// ── ScriptGenerating ──
	run.enter(StateScriptGenerating)
	script, err := withRetry(ctx, "generation", o.deps.Generator.Capabilities(), o.policy(), func(ctx context.Context) (*types.GeneratedScript, error) {
		return o.deps.Generator.GenerateScript(ctx, blueprint, o.cfg.Generation.BrandStyle)
	})
	if err != nil {
		return o.fail(run, err)
	}
	run.Script = script
	o.snapshot(run, "script.json", script)

	// ── ProducingVideo ──
	run.enter(StateProducingVideo)
	result, err := o.produce(ctx, script)
	if err != nil {
		return o.fail(run, err)
	}
	run.Production = result
	o.snapshot(run, "production.json", result)

	// ── Publishing ──
	run.enter(StatePublishing)
	publication, err := o.publish(ctx, run)
	if err != nil {
		return o.fail(run, err)
	}
	run.Publication = publication

	run.enter(StateCompleted)
	run.EndedAt = time.Now().UTC()
	o.snapshot(run, "run.json", run)
	log.Printf("✅ Run %s complete: %s", run.ID, publication.Destination)
	return run, nil
}

// discover merges all sources, ranks by virality and caps the candidate
// list. A candidate reported by multiple sources keeps the first record
// and gains the extra samples.
func (o *Orchestrator) discover(ctx context.Context, run *Run) error {
	records := map[string]*types.VideoRecord{}
	for _, source := range o.deps.Sources {
		batch, err := withRetry(ctx, "discovery", source.Capabilities(), o.policy(), func(ctx context.Context) ([]*types.VideoRecord, error) {
			return source.Search(ctx)
		})
		if err != nil {
			// One dead source is survivable as long as ranking still has
			// candidates.
			log.Printf("[pipeline] Discovery source failed: %v", err)
			run.countItem(StateDiscovering, err)
			continue
		}
		run.countItem(StateDiscovering, nil)
		for _, rec := range batch {
			if existing, ok := records[rec.ID]; ok {
				for _, s := range rec.Samples {
					existing.AppendSample(s)
				}
				continue
			}
			records[rec.ID] = rec
		}
	}

	ranked := discovery.Rank(records, discovery.RankOptions{
		MinGrowthRate:    o.cfg.Discovery.MinGrowthRate,
		GrowthWeight:     o.cfg.Discovery.GrowthWeight,
		EngagementWeight: o.cfg.Discovery.EngagementWeight,
	}).Collect()
	if len(ranked) > o.cfg.Discovery.MaxVideos {
		ranked = ranked[:o.cfg.Discovery.MaxVideos]
	}
	if len(ranked) == 0 {
		return &stage.InsufficientDataError{Op: "discovery", Reason: "no candidates above the growth-rate floor"}
	}

	run.Videos = records
	run.RankedIDs = ranked
	log.Printf("[pipeline] %d candidates ranked (of %d discovered)", len(ranked), len(records))
	return nil
}

// extract fans the ranked candidates through the extractor. One item
// exhausting its retry budget fails only that item.
func (o *Orchestrator) extract(ctx context.Context, workers *pool, run *Run) {
	caps := o.deps.Extractor.Capabilities()
	outcomes := forEach(ctx, workers, run.RankedIDs, func(ctx context.Context, videoID string) (*stage.Extraction, error) {
		return withRetry(ctx, "extraction "+videoID, caps, o.policy(), func(ctx context.Context) (*stage.Extraction, error) {
			return o.deps.Extractor.Extract(ctx, videoID)
		})
	})

	run.Extractions = map[string]*stage.Extraction{}
	for _, out := range outcomes {
		run.countItem(StateExtracting, out.err)
		if out.err != nil {
			log.Printf("[pipeline] Extraction failed for %s: %v", run.RankedIDs[out.idx], out.err)
			continue
		}
		run.Extractions[run.RankedIDs[out.idx]] = out.val
	}
}

// analyze fans surviving extractions through the analyzer, stamping each
// record with its original discovery rank. The synthesizer's first-seen
// tie-break keys off that rank, never off completion order.
func (o *Orchestrator) analyze(ctx context.Context, workers *pool, run *Run) {
	type item struct {
		rank    int
		videoID string
	}
	var items []item
	for rank, videoID := range run.RankedIDs {
		if _, ok := run.Extractions[videoID]; ok {
			items = append(items, item{rank: rank, videoID: videoID})
		}
	}

	caps := o.deps.Analyzer.Capabilities()
	outcomes := forEach(ctx, workers, items, func(ctx context.Context, it item) (*types.AnalysisRecord, error) {
		return withRetry(ctx, "analysis "+it.videoID, caps, o.policy(), func(ctx context.Context) (*types.AnalysisRecord, error) {
			return o.deps.Analyzer.Analyze(ctx, run.Videos[it.videoID], run.Extractions[it.videoID])
		})
	})

	for _, out := range outcomes {
		run.countItem(StateAnalyzing, out.err)
		if out.err != nil {
			log.Printf("[pipeline] Analysis failed for %s: %v", items[out.idx].videoID, out.err)
			continue
		}
		rec := out.val
		rec.DiscoveryRank = items[out.idx].rank
		run.Analyses = append(run.Analyses, rec)
	}
}

// produce selects a backend from declared affinity and the health
// snapshot, submits the script and polls to a terminal state. The
// orchestrator owns polling cadence and the overall production deadline.
func (o *Orchestrator) produce(ctx context.Context, script *types.GeneratedScript) (*types.ProductionResult, error) {
	affinities := map[string]map[string]float64{}
	for name, backend := range o.cfg.Production.Backends {
		affinities[name] = backend.Affinity
	}

	selection, err := production.Select(script.StyleTag, affinities, o.deps.Health(ctx))
	if err != nil {
		return nil, err
	}
	if selection.Degraded && selection.Fallback != "" {
		log.Printf("⚠️ Backend %s degraded, falling back to %s", selection.Backend, selection.Fallback)
		selection = production.Selection{Backend: selection.Fallback}
	} else if selection.Degraded {
		log.Printf("⚠️ Backend %s degraded with no fallback, proceeding", selection.Backend)
	}

	backend, ok := o.deps.Backends[selection.Backend]
	if !ok {
		return nil, stage.Permanentf("production", fmt.Errorf("selected backend %q not wired", selection.Backend))
	}
	limiter := o.limiters[selection.Backend]

	caps := backend.Capabilities()
	taskID, err := withRetry(ctx, "production.submit", caps, o.policy(), func(ctx context.Context) (string, error) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		return backend.Submit(ctx, script)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[pipeline] Submitted to %s (task %s)", backend.Name(), taskID)

	deadline := time.Now().Add(o.cfg.Production.PollTimeout)
	for {
		status, err := withRetry(ctx, "production.poll", caps, o.policy(), func(ctx context.Context) (stage.TaskStatus, error) {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return stage.TaskStatus{}, err
				}
			}
			return backend.Poll(ctx, taskID)
		})
		if err != nil {
			return nil, err
		}

		switch status.State {
		case stage.TaskSucceeded:
			return &types.ProductionResult{
				Backend:     backend.Name(),
				TaskID:      taskID,
				Status:      types.ProductionSucceeded,
				ArtifactRef: status.ArtifactRef,
				Degraded:    selection.Degraded,
			}, nil
		case stage.TaskFailed:
			return nil, stage.Permanentf("production", fmt.Errorf("backend %s task %s failed", backend.Name(), taskID))
		}

		if time.Now().After(deadline) {
			return nil, stage.Transientf("production", fmt.Errorf("task %s not terminal after %s", taskID, o.cfg.Production.PollTimeout))
		}
		select {
		case <-time.After(o.cfg.Production.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, run *Run) (*types.PublishResult, error) {
	meta := types.PublishMetadata{
		Title:       run.Script.Title,
		Description: fmt.Sprintf("Generated from trend %s (%d source videos).", run.Blueprint.Name, run.Blueprint.SourceCount),
		Hashtags:    []string{"#shorts", "#" + string(run.Blueprint.Category)},
		Platform:    o.cfg.Publishing.Platform,
	}

	caps := o.deps.Publisher.Capabilities()
	return withRetry(ctx, "publishing", caps, o.policy(), func(ctx context.Context) (*types.PublishResult, error) {
		return o.deps.Publisher.Publish(ctx, run.Production.ArtifactRef, meta)
	})
}

// fail moves the run to the terminal Failed state, preserving the
// last-good stage and all accumulated partial results.
func (o *Orchestrator) fail(run *Run, err error) (*Run, error) {
	failedAt := run.State
	if n := len(run.Transitions); n > 1 {
		run.LastGood = run.Transitions[n-2]
	}
	run.enter(StateFailed)
	run.EndedAt = time.Now().UTC()
	run.Error = err.Error()
	o.snapshot(run, "run.json", run)

	log.Printf("❌ Run %s failed at %s: %v", run.ID, failedAt, err)
	for _, st := range forward {
		if c, ok := run.Items[st]; ok {
			log.Printf("[pipeline]   %s: %d ok, %d failed", st, c.Succeeded, c.Failed)
		}
	}
	return run, &RunFailed{Stage: failedAt, Run: run, Err: err}
}

// snapshot writes a stage output as JSON into the run directory.
func (o *Orchestrator) snapshot(run *Run, name string, v interface{}) {
	if run.Dir == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("[pipeline] Warning: could not marshal %s: %v", name, err)
		return
	}
	path := filepath.Join(run.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("[pipeline] Warning: could not save %s: %v", path, err)
	}
}
