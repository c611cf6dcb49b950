// Package extraction downloads a candidate video and produces the frames
// and transcript the analysis stage consumes.
package extraction

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"

	"trend-pipeline/config"
	"trend-pipeline/stage"
)

var transcriptLanguages = []string{"en", "en-US", "en-GB"}

// Extractor is the extraction-stage adapter.
type Extractor struct {
	cfg           config.ExtractionConfig
	workDir       string
	ytClient      *yt.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
}

// New builds an extractor writing downloads and frames under workDir.
func New(cfg config.ExtractionConfig, workDir string) *Extractor {
	return &Extractor{
		cfg:           cfg,
		workDir:       workDir,
		ytClient:      &yt.Client{},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
	}
}

func (e *Extractor) Capabilities() stage.Capabilities {
	// Downloads overwrite their own output; repeating is safe.
	return stage.Capabilities{Idempotent: true, Retryable: true}
}

// Extract downloads the video, samples frames at the configured interval
// and fetches the transcript. A missing transcript is not an error; the
// analysis stage degrades to frames plus metadata.
func (e *Extractor) Extract(ctx context.Context, videoID string) (*stage.Extraction, error) {
	dir := filepath.Join(e.workDir, videoID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, stage.Permanentf("extraction", err)
	}

	videoPath, err := e.download(ctx, videoID, dir)
	if err != nil {
		return nil, err
	}

	frames, err := e.sampleFrames(ctx, videoPath, dir)
	if err != nil {
		return nil, err
	}

	ex := &stage.Extraction{VideoID: videoID, Frames: frames}
	if e.cfg.WithTranscript {
		ex.Transcript = e.fetchTranscript(videoID)
	}
	log.Printf("[extraction] %s: %d frames, transcript %d chars", videoID, len(frames), len(ex.Transcript))
	return ex, nil
}

func (e *Extractor) download(ctx context.Context, videoID, dir string) (string, error) {
	video, err := e.ytClient.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", classifyExtractionErr("extraction.download", err)
	}

	formats := video.Formats.Type("video/mp4")
	if len(formats) == 0 {
		return "", stage.Permanentf("extraction.download", fmt.Errorf("video %s: no mp4 format", videoID))
	}
	// Frame sampling doesn't need high resolution; take the smallest.
	sort.Slice(formats, func(i, j int) bool { return formats[i].Height < formats[j].Height })

	streamReader, _, err := e.ytClient.GetStreamContext(ctx, video, &formats[0])
	if err != nil {
		return "", classifyExtractionErr("extraction.download", err)
	}
	defer streamReader.Close()

	videoPath := filepath.Join(dir, "video.mp4")
	f, err := os.Create(videoPath)
	if err != nil {
		return "", stage.Permanentf("extraction.download", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, streamReader); err != nil {
		return "", classifyExtractionErr("extraction.download", err)
	}
	return videoPath, nil
}

// sampleFrames shells out to ffmpeg, one frame every FrameIntervalSec up
// to MaxFrames.
func (e *Extractor) sampleFrames(ctx context.Context, videoPath, dir string) ([]stage.FrameRef, error) {
	pattern := filepath.Join(dir, "frame_%03d.jpg")
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%g", e.cfg.FrameIntervalSec),
		"-frames:v", fmt.Sprintf("%d", e.cfg.MaxFrames),
		"-q:v", "3",
		pattern,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, stage.Transientf("extraction.frames", ctx.Err())
		}
		return nil, stage.Transientf("extraction.frames", fmt.Errorf("ffmpeg: %v: %s", err, lastLine(out)))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, stage.Permanentf("extraction.frames", err)
	}
	sort.Strings(matches)

	frames := make([]stage.FrameRef, len(matches))
	for i, path := range matches {
		frames[i] = stage.FrameRef{Path: path, Timestamp: float64(i) * e.cfg.FrameIntervalSec}
	}
	return frames, nil
}

func (e *Extractor) fetchTranscript(videoID string) string {
	transcript, err := e.transcriptAPI.GetTranscript(videoID, transcriptLanguages)
	if err != nil {
		transcript, err = e.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			log.Printf("[extraction] No transcript for %s: %v", videoID, err)
			return ""
		}
	}

	var b strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

// Download failures are overwhelmingly throttling or flaky CDN edges, so
// everything here is retryable.
func classifyExtractionErr(op string, err error) error {
	return stage.Transientf(op, err)
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
