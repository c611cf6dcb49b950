package production

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-pipeline/stage"
	"trend-pipeline/types"
)

func testScript() *types.GeneratedScript {
	return &types.GeneratedScript{
		ID:       "s1",
		Title:    "The gym at 5am hits different",
		StyleTag: "fast-cut energetic",
		Shots: []types.Shot{
			{Index: 0, Prompt: "alarm clock slams off in the dark", Seconds: 3, CameraMotion: "whip pan"},
			{Index: 1, Prompt: "empty gym, single spotlight on the rack", Seconds: 5},
		},
	}
}

func newTestRunway(baseURL string) *Runway {
	return &Runway{
		apiKey:      "test-key",
		model:       "gen3a_turbo",
		aspectRatio: "768:1280",
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

func TestRunwaySubmitAndPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/text_to_video":
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.Equal(t, runwayAPIVersion, r.Header.Get("X-Runway-Version"))

			var req runwayGenerateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "gen3a_turbo", req.Model)
			assert.Equal(t, "768:1280", req.Ratio)
			assert.Contains(t, req.PromptText, "gym at 5am")

			json.NewEncoder(w).Encode(runwayGenerateResponse{ID: "task_42"})
		case "/tasks/task_42":
			json.NewEncoder(w).Encode(runwayTaskResponse{
				ID:     "task_42",
				Status: "SUCCEEDED",
				Output: []string{"https://cdn.example/clip.mp4"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	rw := newTestRunway(srv.URL)
	taskID, err := rw.Submit(context.Background(), testScript())
	require.NoError(t, err)
	assert.Equal(t, "task_42", taskID)

	status, err := rw.Poll(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, stage.TaskSucceeded, status.State)
	assert.Equal(t, "https://cdn.example/clip.mp4", status.ArtifactRef)
}

func TestRunwayPollStatusMapping(t *testing.T) {
	cases := []struct {
		apiStatus string
		want      stage.TaskState
	}{
		{"PENDING", stage.TaskQueued},
		{"RUNNING", stage.TaskRunning},
		{"FAILED", stage.TaskFailed},
		{"CANCELLED", stage.TaskFailed},
		{"THROTTLED", stage.TaskFailed},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(runwayTaskResponse{ID: "t", Status: tc.apiStatus})
		}))
		rw := newTestRunway(srv.URL)
		status, err := rw.Poll(context.Background(), "t")
		srv.Close()

		require.NoError(t, err, tc.apiStatus)
		assert.Equal(t, tc.want, status.State, tc.apiStatus)
	}
}

func TestRunwaySubmitRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestRunway(srv.URL).Submit(context.Background(), testScript())
	assert.True(t, stage.IsTransient(err))
}

func TestRunwaySubmitAuthFailureIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestRunway(srv.URL).Submit(context.Background(), testScript())
	assert.True(t, stage.IsPermanent(err))
}

func TestPikaSubmitAndPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate":
			var req pikaGenerateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "1.5", req.Model)
			assert.Equal(t, "9:16", req.Options.AspectRatio)
			assert.Equal(t, 24, req.Options.FrameRate)

			json.NewEncoder(w).Encode(pikaGenerateResponse{ID: "gen_7"})
		case "/videos/gen_7":
			json.NewEncoder(w).Encode(pikaVideoResponse{
				ID:        "gen_7",
				Status:    "finished",
				ResultURL: "https://cdn.pika.example/out.mp4",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	pk := &Pika{
		apiKey:      "test-key",
		model:       "1.5",
		aspectRatio: "9:16",
		baseURL:     srv.URL,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}

	genID, err := pk.Submit(context.Background(), testScript())
	require.NoError(t, err)
	assert.Equal(t, "gen_7", genID)

	status, err := pk.Poll(context.Background(), genID)
	require.NoError(t, err)
	assert.Equal(t, stage.TaskSucceeded, status.State)
	assert.Equal(t, "https://cdn.pika.example/out.mp4", status.ArtifactRef)
}

func TestPikaUnknownStatusIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pikaVideoResponse{ID: "g", Status: "exploded"})
	}))
	defer srv.Close()

	pk := &Pika{apiKey: "k", baseURL: srv.URL, httpClient: &http.Client{Timeout: 5 * time.Second}}
	_, err := pk.Poll(context.Background(), "g")
	assert.True(t, stage.IsPermanent(err))
}

func TestBuildShotPromptCapsLengthAndShots(t *testing.T) {
	script := testScript()
	for i := 2; i < 8; i++ {
		script.Shots = append(script.Shots, types.Shot{Index: i, Prompt: "extra shot"})
	}

	prompt := buildShotPrompt(script, 500)
	assert.Contains(t, prompt, script.Title)
	assert.Contains(t, prompt, "Style: fast-cut energetic")
	assert.Contains(t, prompt, "Camera: whip pan")
	assert.NotContains(t, prompt, "extra shot")

	assert.LessOrEqual(t, len(buildShotPrompt(script, 40)), 40)
}
