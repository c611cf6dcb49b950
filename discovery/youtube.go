package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"trend-pipeline/config"
	"trend-pipeline/stage"
	"trend-pipeline/types"
)

// YouTubeSource discovers trending shorts via the YouTube Data API.
// Growth rate needs two time-separated samples, so the source keeps a
// JSON sample cache across runs: a video seen on an earlier scan gets the
// current counters appended as its second sample.
type YouTubeSource struct {
	cfg       config.DiscoveryConfig
	apiKey    string
	cachePath string
}

// NewYouTubeSource builds the source. The API key comes from the
// environment, not from config (secrets never live in config.yaml).
func NewYouTubeSource(cfg config.DiscoveryConfig, cachePath string) (*YouTubeSource, error) {
	apiKey := os.Getenv("YOUTUBE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("YOUTUBE_API_KEY not set")
	}
	return &YouTubeSource{cfg: cfg, apiKey: apiKey, cachePath: cachePath}, nil
}

func (s *YouTubeSource) Capabilities() stage.Capabilities {
	// Pure reads against the Data API; safe to repeat.
	return stage.Capabilities{Idempotent: true, Retryable: true}
}

// Search finds recent popular shorts, filters for breakout channels, and
// merges counter samples with the cache so returning videos carry two
// samples.
func (s *YouTubeSource) Search(ctx context.Context) ([]*types.VideoRecord, error) {
	svc, err := youtube.NewService(ctx, option.WithAPIKey(s.apiKey))
	if err != nil {
		return nil, stage.Permanentf("discovery.youtube", err)
	}

	log.Printf("[discovery] Searching recent shorts (lookback %dd)...", s.cfg.LookbackDays)
	publishedAfter := time.Now().AddDate(0, 0, -s.cfg.LookbackDays).Format(time.RFC3339)
	searchResp, err := svc.Search.List([]string{"snippet"}).
		Q("#shorts").
		Type("video").
		VideoDuration("short").
		Order("viewCount").
		RelevanceLanguage("en").
		PublishedAfter(publishedAfter).
		MaxResults(50).
		Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError("discovery.youtube.search", err)
	}

	var videoIDs []string
	channelIDs := map[string]bool{}
	for _, item := range searchResp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		videoIDs = append(videoIDs, item.Id.VideoId)
		channelIDs[item.Snippet.ChannelId] = true
	}
	if len(videoIDs) == 0 {
		return nil, nil
	}

	breakout, err := s.breakoutChannels(ctx, svc, channelIDs)
	if err != nil {
		// Breakout filtering is an enrichment; fall back to no filter.
		log.Printf("[discovery] Channel stats warning: %v (skipping breakout filter)", err)
		breakout = nil
	}

	videosResp, err := svc.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
		Id(videoIDs...).
		Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError("discovery.youtube.videos", err)
	}

	now := time.Now().UTC()
	var records []*types.VideoRecord
	for _, v := range videosResp.Items {
		if v.Statistics == nil || v.Snippet == nil {
			continue
		}
		if int64(v.Statistics.ViewCount) < s.cfg.MinViews {
			continue
		}
		if breakout != nil && !breakout[v.Snippet.ChannelId] {
			continue
		}
		publishedAt, _ := time.Parse(time.RFC3339, v.Snippet.PublishedAt)
		var duration float64
		if v.ContentDetails != nil {
			duration = parseISODuration(v.ContentDetails.Duration)
		}
		rec := &types.VideoRecord{
			ID:          v.Id,
			URL:         "https://www.youtube.com/shorts/" + v.Id,
			Title:       v.Snippet.Title,
			ChannelID:   v.Snippet.ChannelId,
			ChannelName: v.Snippet.ChannelTitle,
			DurationSec: duration,
			PublishedAt: publishedAt,
			Hashtags:    extractHashtags(v.Snippet.Title + " " + v.Snippet.Description),
		}
		rec.AppendSample(types.MetricsSample{
			Views:     int64(v.Statistics.ViewCount),
			Likes:     int64(v.Statistics.LikeCount),
			Comments:  int64(v.Statistics.CommentCount),
			SampledAt: now,
		})
		records = append(records, rec)
	}

	records = mergeSampleCache(s.cachePath, records)
	log.Printf("[discovery] YouTube: %d candidates (%d with growth history)", len(records), countTwoSample(records))
	return records, nil
}

// breakoutChannels returns the subset of channels whose statistics match
// the breakout heuristic: mid-sized subscriber counts with a high
// subscribers-per-video ratio, meaning a few videos drove explosive growth.
func (s *YouTubeSource) breakoutChannels(ctx context.Context, svc *youtube.Service, ids map[string]bool) (map[string]bool, error) {
	if s.cfg.BreakoutSubMin <= 0 {
		return nil, nil
	}
	var list []string
	for id := range ids {
		list = append(list, id)
	}
	resp, err := svc.Channels.List([]string{"statistics"}).Id(list...).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	for _, ch := range resp.Items {
		if ch.Statistics == nil {
			continue
		}
		subs := int64(ch.Statistics.SubscriberCount)
		videos := int64(ch.Statistics.VideoCount)
		if subs < s.cfg.BreakoutSubMin || (s.cfg.BreakoutSubMax > 0 && subs > s.cfg.BreakoutSubMax) {
			continue
		}
		if videos == 0 {
			continue
		}
		if s.cfg.BreakoutSubsPerVideo > 0 && float64(subs)/float64(videos) < s.cfg.BreakoutSubsPerVideo {
			continue
		}
		out[ch.Id] = true
	}
	return out, nil
}

// mergeSampleCache prepends cached earlier samples onto freshly discovered
// records and persists the merged set for the next scan. This is what
// gives a returning candidate its second, time-separated sample.
func mergeSampleCache(cachePath string, records []*types.VideoRecord) []*types.VideoRecord {
	if cachePath == "" {
		return records
	}
	cached := map[string][]types.MetricsSample{}
	if data, err := os.ReadFile(cachePath); err == nil {
		if err := json.Unmarshal(data, &cached); err != nil {
			log.Printf("[discovery] Sample cache unreadable: %v (starting fresh)", err)
			cached = map[string][]types.MetricsSample{}
		}
	}

	for _, rec := range records {
		if prior, ok := cached[rec.ID]; ok && len(prior) > 0 {
			fresh := rec.Samples
			rec.Samples = append([]types.MetricsSample{}, prior...)
			for _, sample := range fresh {
				rec.AppendSample(sample)
			}
		}
		cached[rec.ID] = rec.Samples
	}

	if data, err := json.MarshalIndent(cached, "", "  "); err == nil {
		if err := os.WriteFile(cachePath, data, 0644); err != nil {
			log.Printf("[discovery] Warning: could not save sample cache: %v", err)
		}
	}
	return records
}

func countTwoSample(records []*types.VideoRecord) int {
	n := 0
	for _, r := range records {
		if _, ok := r.GrowthRate(); ok {
			n++
		}
	}
	return n
}

func classifyAPIError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 429 || gerr.Code >= 500:
			return stage.Transientf(op, err)
		case gerr.Code == 401 || gerr.Code == 403:
			return stage.Permanentf(op, err)
		}
	}
	// Network-level failures are worth retrying.
	return stage.Transientf(op, err)
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts the Data API's ISO-8601 duration ("PT58S")
// into seconds. Malformed values read as zero.
func parseISODuration(d string) float64 {
	m := isoDurationRe.FindStringSubmatch(d)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return float64(h*3600 + min*60 + sec)
}

var hashtagRe = regexp.MustCompile(`#\w+`)

func extractHashtags(text string) []string {
	seen := map[string]bool{}
	var tags []string
	for _, tag := range hashtagRe.FindAllString(text, -1) {
		tag = strings.ToLower(tag)
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
