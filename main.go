package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trend-pipeline/analysis"
	"trend-pipeline/config"
	"trend-pipeline/discovery"
	"trend-pipeline/extraction"
	"trend-pipeline/generation"
	"trend-pipeline/pipeline"
	"trend-pipeline/production"
	"trend-pipeline/publishing"
	"trend-pipeline/stage"
)

func main() {
	// Load .env (local dev only; CI uses injected secrets)
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	for _, dir := range []string{cfg.Paths.Output, cfg.Paths.Logs, cfg.Paths.DryRunSink} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create dir %s: %v", dir, err)
		}
	}

	// Ctrl-C cancels the run; completed stage outputs stay on disk.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDeps(cfg)
	if err != nil {
		log.Fatalf("Failed to wire adapters: %v", err)
	}

	orch := pipeline.New(cfg, deps, cfg.Paths.Output)
	if _, err := orch.Execute(ctx); err != nil {
		// Execute already reported the failed stage and per-stage counts.
		os.Exit(1)
	}
}

// buildDeps wires the concrete adapters. Mode decides the publisher here,
// at construction; the orchestrator itself never branches on mode.
func buildDeps(cfg *config.Config) (pipeline.Deps, error) {
	var sources []stage.DiscoverySource

	cachePath := cfg.Paths.SampleCache
	if cachePath == "" {
		cachePath = filepath.Join(cfg.Paths.Logs, "sample_cache.json")
	}

	if yt, err := discovery.NewYouTubeSource(cfg.Discovery, cachePath); err != nil {
		log.Printf("⚠️  YouTube discovery disabled: %v", err)
	} else {
		sources = append(sources, yt)
	}
	if len(cfg.Discovery.Subreddits) > 0 {
		if rd, err := discovery.NewRedditSource(cfg.Discovery, cachePath); err != nil {
			log.Printf("⚠️  Reddit discovery disabled: %v", err)
		} else {
			sources = append(sources, rd)
		}
	}
	if len(sources) == 0 {
		log.Fatal("No discovery source configured: set YOUTUBE_API_KEY or Reddit credentials")
	}

	analyzer, err := analysis.New(cfg.Analysis)
	if err != nil {
		return pipeline.Deps{}, err
	}
	generator, err := generation.New(cfg.Generation, time.Now().UnixNano())
	if err != nil {
		return pipeline.Deps{}, err
	}

	backends := map[string]stage.Backend{}
	for name := range cfg.Production.Backends {
		switch name {
		case "runway":
			b, err := production.NewRunway(cfg.Production.AspectRatio)
			if err != nil {
				log.Printf("⚠️  Backend runway disabled: %v", err)
				continue
			}
			backends[name] = b
		case "pika":
			b, err := production.NewPika(cfg.Production.AspectRatio)
			if err != nil {
				log.Printf("⚠️  Backend pika disabled: %v", err)
				continue
			}
			backends[name] = b
		default:
			log.Printf("⚠️  Unknown backend %q in config, skipping", name)
		}
	}

	var publisher stage.Publisher
	if cfg.Pipeline.Mode == config.ModeLive {
		publisher = publishing.NewYouTubePublisher(cfg.Publishing, filepath.Join(cfg.Paths.Output, "artifacts"))
	} else {
		publisher = publishing.NewLocalSink(cfg.Paths.DryRunSink)
	}

	return pipeline.Deps{
		Sources:   sources,
		Extractor: extraction.New(cfg.Extraction, filepath.Join(cfg.Paths.Output, "extracted")),
		Analyzer:  analyzer,
		Generator: generator,
		Backends:  backends,
		Publisher: publisher,
	}, nil
}
