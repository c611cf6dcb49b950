package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects live side effects or the local dry-run sink.
type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeLive   Mode = "live"
)

type Config struct {
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Generation GenerationConfig `yaml:"generation"`
	Production ProductionConfig `yaml:"production"`
	Publishing PublishingConfig `yaml:"publishing"`
	Paths      PathsConfig      `yaml:"paths"`
}

type PipelineConfig struct {
	Mode             Mode          `yaml:"mode"`
	Concurrency      int           `yaml:"concurrency"`
	RetryBudget      int           `yaml:"retry_budget"`
	RetryBaseBackoff time.Duration `yaml:"retry_base_backoff"`
	AdapterTimeout   time.Duration `yaml:"adapter_timeout"`
}

type DiscoveryConfig struct {
	MaxVideos         int           `yaml:"max_videos"`
	MinGrowthRate     float64       `yaml:"min_growth_rate"`
	GrowthWeight      float64       `yaml:"growth_weight"`
	EngagementWeight  float64       `yaml:"engagement_weight"`
	ResampleDelay     time.Duration `yaml:"resample_delay"`
	LookbackDays      int           `yaml:"lookback_days"`
	MinViews          int64         `yaml:"min_views"`
	Subreddits        []string      `yaml:"subreddits"`
	BreakoutSubMin    int64         `yaml:"breakout_sub_min"`
	BreakoutSubMax    int64         `yaml:"breakout_sub_max"`
	BreakoutSubsPerVideo float64    `yaml:"breakout_subs_per_video"`
}

type ExtractionConfig struct {
	FrameIntervalSec float64 `yaml:"frame_interval_sec"`
	MaxFrames        int     `yaml:"max_frames"`
	WithTranscript   bool    `yaml:"with_transcript"`
}

type AnalysisConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxFrames   int     `yaml:"max_frames"`
}

type GenerationConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	BrandStyle  string  `yaml:"brand_style"`
	MinConfidenceRecords int `yaml:"min_confidence_records"`
}

// BackendConfig declares one production backend: its per-style affinity
// table and its request rate cap. Affinity is static declared data, not
// probed.
type BackendConfig struct {
	Affinity      map[string]float64 `yaml:"affinity"`
	RatePerMinute int                `yaml:"rate_per_minute"`
}

type ProductionConfig struct {
	Backends     map[string]BackendConfig `yaml:"backends"`
	PollInterval time.Duration            `yaml:"poll_interval"`
	PollTimeout  time.Duration            `yaml:"poll_timeout"`
	AspectRatio  string                   `yaml:"aspect_ratio"`
}

type PublishingConfig struct {
	Platform          string `yaml:"platform"`
	Visibility        string `yaml:"visibility"`
	CategoryID        string `yaml:"category_id"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
	DefaultLanguage   string `yaml:"default_language"`
}

type PathsConfig struct {
	Output      string `yaml:"output"`
	Logs        string `yaml:"logs"`
	DryRunSink  string `yaml:"dry_run_sink"`
	SampleCache string `yaml:"sample_cache"`
}

// Load reads config.yaml, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.Mode == "" {
		c.Pipeline.Mode = ModeDryRun
	}
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 4
	}
	if c.Pipeline.RetryBudget <= 0 {
		c.Pipeline.RetryBudget = 3
	}
	if c.Pipeline.RetryBaseBackoff <= 0 {
		c.Pipeline.RetryBaseBackoff = 2 * time.Second
	}
	if c.Pipeline.AdapterTimeout <= 0 {
		c.Pipeline.AdapterTimeout = 90 * time.Second
	}
	if c.Discovery.MaxVideos <= 0 {
		c.Discovery.MaxVideos = 20
	}
	if c.Discovery.MinGrowthRate == 0 {
		c.Discovery.MinGrowthRate = 0.20
	}
	if c.Discovery.GrowthWeight == 0 && c.Discovery.EngagementWeight == 0 {
		c.Discovery.GrowthWeight = 0.7
		c.Discovery.EngagementWeight = 0.3
	}
	if c.Discovery.LookbackDays <= 0 {
		c.Discovery.LookbackDays = 14
	}
	if c.Discovery.MinViews <= 0 {
		c.Discovery.MinViews = 1000
	}
	if c.Extraction.FrameIntervalSec <= 0 {
		c.Extraction.FrameIntervalSec = 2.0
	}
	if c.Extraction.MaxFrames <= 0 {
		c.Extraction.MaxFrames = 12
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = "gpt-4o-mini"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.MinConfidenceRecords <= 0 {
		c.Generation.MinConfidenceRecords = 3
	}
	if c.Production.PollInterval <= 0 {
		c.Production.PollInterval = 5 * time.Second
	}
	if c.Production.PollTimeout <= 0 {
		c.Production.PollTimeout = 5 * time.Minute
	}
	if c.Production.AspectRatio == "" {
		c.Production.AspectRatio = "9:16"
	}
	if c.Publishing.Platform == "" {
		c.Publishing.Platform = "youtube"
	}
	if c.Publishing.Visibility == "" {
		c.Publishing.Visibility = "private"
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "output"
	}
	if c.Paths.Logs == "" {
		c.Paths.Logs = "logs"
	}
	if c.Paths.DryRunSink == "" {
		c.Paths.DryRunSink = "output/dry_run"
	}
}

func (c *Config) validate() error {
	if c.Pipeline.Mode != ModeDryRun && c.Pipeline.Mode != ModeLive {
		return fmt.Errorf("config: unknown pipeline mode %q", c.Pipeline.Mode)
	}
	if c.Discovery.MinGrowthRate < 0 {
		return fmt.Errorf("config: min_growth_rate must not be negative")
	}
	for name, backend := range c.Production.Backends {
		if len(backend.Affinity) == 0 {
			return fmt.Errorf("config: backend %q declares no affinity table", name)
		}
	}
	return nil
}
