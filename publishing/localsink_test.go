package publishing

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-pipeline/types"
)

func TestLocalSinkCopiesLocalArtifact(t *testing.T) {
	workDir := t.TempDir()
	artifact := filepath.Join(workDir, "clip.mp4")
	require.NoError(t, os.WriteFile(artifact, []byte("not really a video"), 0o644))

	sink := NewLocalSink(filepath.Join(workDir, "sink"))
	result, err := sink.Publish(context.Background(), artifact, types.PublishMetadata{
		Title:    "Test short",
		Platform: "youtube",
		Hashtags: []string{"#shorts"},
	})
	require.NoError(t, err)

	assert.Equal(t, "youtube", result.Platform)
	assert.True(t, len(result.PostID) > len("dryrun_"))

	copied, err := os.ReadFile(filepath.Join(result.Destination, "artifact.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "not really a video", string(copied))

	metaRaw, err := os.ReadFile(filepath.Join(result.Destination, "metadata.json"))
	require.NoError(t, err)
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(metaRaw, &record))
	assert.Equal(t, result.PostID, record["post_id"])
}

func TestLocalSinkKeepsRemoteReference(t *testing.T) {
	sink := NewLocalSink(t.TempDir())
	result, err := sink.Publish(context.Background(), "https://cdn.example/out.mp4", types.PublishMetadata{
		Title:    "Remote artifact",
		Platform: "youtube",
	})
	require.NoError(t, err)

	metaRaw, err := os.ReadFile(filepath.Join(result.Destination, "metadata.json"))
	require.NoError(t, err)
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(metaRaw, &record))
	assert.Equal(t, "https://cdn.example/out.mp4", record["artifact"])

	_, err = os.Stat(filepath.Join(result.Destination, "artifact.mp4"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalSinkIsRetryable(t *testing.T) {
	caps := NewLocalSink(t.TempDir()).Capabilities()
	assert.True(t, caps.Idempotent)
	assert.True(t, caps.Retryable)
}
