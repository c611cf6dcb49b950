package publishing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"trend-pipeline/stage"
	"trend-pipeline/types"
)

// LocalSink is the dry-run publisher: it writes the artifact and its
// metadata into a local directory and reports success through the exact
// same contract as the live publishers, so dry-run and live runs walk an
// identical state machine.
type LocalSink struct {
	dir string
}

// NewLocalSink writes published artifacts under dir.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{dir: dir}
}

func (s *LocalSink) Capabilities() stage.Capabilities {
	return stage.Capabilities{Idempotent: true, Retryable: true}
}

// Publish copies (or records a pointer to) the artifact and writes the
// metadata next to it.
func (s *LocalSink) Publish(ctx context.Context, artifactRef string, meta types.PublishMetadata) (*types.PublishResult, error) {
	postID := "dryrun_" + uuid.NewString()[:8]
	postDir := filepath.Join(s.dir, postID)
	if err := os.MkdirAll(postDir, 0755); err != nil {
		return nil, stage.Permanentf("publishing.localsink", err)
	}

	artifactNote := artifactRef
	if !strings.HasPrefix(artifactRef, "http://") && !strings.HasPrefix(artifactRef, "https://") {
		if copied, err := copyFile(artifactRef, filepath.Join(postDir, "artifact.mp4")); err == nil {
			artifactNote = copied
		} else {
			log.Printf("[publishing] Dry-run: could not copy artifact: %v (keeping reference)", err)
		}
	}

	record := map[string]interface{}{
		"post_id":      postID,
		"artifact":     artifactNote,
		"metadata":     meta,
		"published_at": time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, stage.Permanentf("publishing.localsink", err)
	}
	metaPath := filepath.Join(postDir, "metadata.json")
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return nil, stage.Permanentf("publishing.localsink", err)
	}

	log.Printf("[publishing] Dry-run: wrote %s", metaPath)
	return &types.PublishResult{
		Platform:    meta.Platform,
		PostID:      postID,
		Destination: postDir,
	}, nil
}

func copyFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	return dst, nil
}
