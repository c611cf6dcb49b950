// Package publishing pushes finished artifacts to their platform. The
// live YouTube publisher and the dry-run local sink implement the same
// contract, so the orchestrator's state machine is identical in both
// modes.
package publishing

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"trend-pipeline/config"
	"trend-pipeline/stage"
	"trend-pipeline/types"
)

// YouTubePublisher uploads via the Data API v3 with a refresh-token OAuth
// flow.
type YouTubePublisher struct {
	cfg        config.PublishingConfig
	workDir    string
	httpClient *http.Client
}

// NewYouTubePublisher builds the live publisher. workDir holds artifacts
// fetched from vendor CDNs before upload.
func NewYouTubePublisher(cfg config.PublishingConfig, workDir string) *YouTubePublisher {
	return &YouTubePublisher{
		cfg:        cfg,
		workDir:    workDir,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *YouTubePublisher) Capabilities() stage.Capabilities {
	// A repeated upload creates a duplicate video; never auto-retry.
	return stage.Capabilities{Idempotent: false, Retryable: false}
}

// Publish fetches the artifact if it is remote, then runs a resumable
// insert with the metadata.
func (p *YouTubePublisher) Publish(ctx context.Context, artifactRef string, meta types.PublishMetadata) (*types.PublishResult, error) {
	localPath, err := p.localize(ctx, artifactRef)
	if err != nil {
		return nil, err
	}

	client, err := p.oauthClient(ctx)
	if err != nil {
		return nil, stage.Permanentf("publishing.youtube", err)
	}
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, stage.Permanentf("publishing.youtube", err)
	}

	log.Printf("[publishing] Uploading %q to YouTube...", meta.Title)

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                meta.Title,
			Description:          meta.Description,
			Tags:                 stripHashes(meta.Hashtags),
			CategoryId:           p.cfg.CategoryID,
			DefaultLanguage:      p.cfg.DefaultLanguage,
			DefaultAudioLanguage: p.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: p.cfg.Visibility,
		},
	}
	if meta.ScheduledAt != "" && p.cfg.Visibility == "public" {
		video.Status.PrivacyStatus = "private" // must be private to schedule
		video.Status.PublishAt = meta.ScheduledAt
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, stage.Permanentf("publishing.youtube", err)
	}
	defer f.Close()

	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).NotifySubscribers(p.cfg.NotifySubscribers).Media(f).Context(ctx).Do()
	if err != nil {
		return nil, stage.Transientf("publishing.youtube", err)
	}

	log.Printf("[publishing] ✅ Uploaded: https://www.youtube.com/watch?v=%s", uploaded.Id)
	return &types.PublishResult{
		Platform:    "youtube",
		PostID:      uploaded.Id,
		Destination: "https://www.youtube.com/watch?v=" + uploaded.Id,
	}, nil
}

// localize downloads a remote artifact into workDir; local refs pass
// through.
func (p *YouTubePublisher) localize(ctx context.Context, artifactRef string) (string, error) {
	if !strings.HasPrefix(artifactRef, "http://") && !strings.HasPrefix(artifactRef, "https://") {
		return artifactRef, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactRef, nil)
	if err != nil {
		return "", stage.Permanentf("publishing.fetch", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", stage.Transientf("publishing.fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", stage.Transientf("publishing.fetch", fmt.Errorf("status %d fetching artifact", resp.StatusCode))
	}

	if err := os.MkdirAll(p.workDir, 0755); err != nil {
		return "", stage.Permanentf("publishing.fetch", err)
	}
	localPath := filepath.Join(p.workDir, fmt.Sprintf("artifact_%d.mp4", time.Now().UnixNano()))
	f, err := os.Create(localPath)
	if err != nil {
		return "", stage.Permanentf("publishing.fetch", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", stage.Transientf("publishing.fetch", err)
	}
	return localPath, nil
}

// oauthClient builds an OAuth2 HTTP client from env credentials.
func (p *YouTubePublisher) oauthClient(ctx context.Context) (*http.Client, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, token)), nil
}

func stripHashes(hashtags []string) []string {
	tags := make([]string, 0, len(hashtags))
	for _, h := range hashtags {
		tags = append(tags, strings.TrimPrefix(h, "#"))
	}
	return tags
}
