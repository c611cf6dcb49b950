package discovery

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"trend-pipeline/config"
	"trend-pipeline/stage"
	"trend-pipeline/types"
)

// RedditSource surfaces short-form video candidates from trend-watching
// subreddits. Reddit exposes no view counter, so post score stands in for
// views and comment count maps directly; growth still develops across
// scans through the shared sample cache, exactly like the YouTube source.
type RedditSource struct {
	cfg       config.DiscoveryConfig
	client    *reddit.Client
	cachePath string
}

// NewRedditSource authenticates against Reddit with the script-app
// credentials from the environment.
func NewRedditSource(cfg config.DiscoveryConfig, cachePath string) (*RedditSource, error) {
	creds := reddit.Credentials{
		ID:       os.Getenv("REDDIT_CLIENT_ID"),
		Secret:   os.Getenv("REDDIT_CLIENT_SECRET"),
		Username: os.Getenv("REDDIT_USERNAME"),
		Password: os.Getenv("REDDIT_PASSWORD"),
	}
	if creds.ID == "" || creds.Secret == "" {
		return nil, fmt.Errorf("REDDIT_CLIENT_ID or REDDIT_CLIENT_SECRET not set")
	}
	client, err := reddit.NewClient(creds)
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &RedditSource{cfg: cfg, client: client, cachePath: cachePath}, nil
}

func (s *RedditSource) Capabilities() stage.Capabilities {
	return stage.Capabilities{Idempotent: true, Retryable: true}
}

// Search pulls hot posts from the configured subreddits and keeps the
// ones linking to short-form video.
func (s *RedditSource) Search(ctx context.Context) ([]*types.VideoRecord, error) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.LookbackDays)
	now := time.Now().UTC()

	var records []*types.VideoRecord
	for _, sub := range s.cfg.Subreddits {
		posts, _, err := s.client.Subreddit.HotPosts(ctx, sub, &reddit.ListOptions{Limit: 25})
		if err != nil {
			log.Printf("[discovery] Reddit r/%s error: %v", sub, err)
			continue
		}
		for _, post := range posts {
			if post.Created == nil || post.Created.Before(cutoff) {
				continue
			}
			videoID, ok := videoIDFromURL(post.URL)
			if !ok {
				continue
			}
			rec := &types.VideoRecord{
				ID:          videoID,
				URL:         post.URL,
				Title:       post.Title,
				ChannelID:   "reddit:" + post.SubredditName,
				ChannelName: "r/" + post.SubredditName,
				PublishedAt: post.Created.Time,
				Hashtags:    extractHashtags(post.Title),
			}
			rec.AppendSample(types.MetricsSample{
				Views:     int64(post.Score),
				Likes:     int64(post.Score),
				Comments:  int64(post.NumberOfComments),
				SampledAt: now,
			})
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}

	records = mergeSampleCache(s.cachePath, records)
	log.Printf("[discovery] Reddit: %d candidates (%d with growth history)", len(records), countTwoSample(records))
	return records, nil
}

// videoIDFromURL recognizes YouTube short/watch links in reddit posts.
func videoIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(u.Host, "www.")
	switch host {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		return id, id != ""
	case "youtube.com", "m.youtube.com":
		if strings.HasPrefix(u.Path, "/shorts/") {
			id := strings.TrimPrefix(u.Path, "/shorts/")
			id = strings.Trim(id, "/")
			return id, id != ""
		}
		if u.Path == "/watch" {
			id := u.Query().Get("v")
			return id, id != ""
		}
	}
	return "", false
}
