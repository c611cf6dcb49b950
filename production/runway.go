package production

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"trend-pipeline/stage"
	"trend-pipeline/types"
)

const (
	runwayBaseURL    = "https://api.dev.runwayml.com/v1"
	runwayAPIVersion = "2024-11-06"
)

// Runway drives the Runway generation API. Submit starts a task; Poll
// reports its state. Polling cadence belongs to the orchestrator.
type Runway struct {
	apiKey      string
	model       string
	aspectRatio string
	baseURL     string
	httpClient  *http.Client
}

// NewRunway reads RUNWAY_API_KEY from the environment.
func NewRunway(aspectRatio string) (*Runway, error) {
	apiKey := os.Getenv("RUNWAY_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RUNWAY_API_KEY not set")
	}
	return &Runway{
		apiKey:      apiKey,
		model:       "gen3a_turbo",
		aspectRatio: aspectRatio,
		baseURL:     runwayBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (r *Runway) Name() string { return "runway" }

func (r *Runway) Capabilities() stage.Capabilities {
	// Submit creates a new task each call; a blind retry could double-bill,
	// so retries are allowed but the call is not idempotent.
	return stage.Capabilities{Idempotent: false, Retryable: true}
}

type runwayGenerateRequest struct {
	PromptText string `json:"promptText"`
	Model      string `json:"model"`
	Ratio      string `json:"ratio"`
}

type runwayGenerateResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type runwayTaskResponse struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Submit posts the script as a text-to-video task and returns the task ID.
func (r *Runway) Submit(ctx context.Context, script *types.GeneratedScript) (string, error) {
	reqBody := runwayGenerateRequest{
		PromptText: buildShotPrompt(script, 500),
		Model:      r.model,
		Ratio:      r.aspectRatio,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", stage.Permanentf("production.runway.submit", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/text_to_video", bytes.NewReader(body))
	if err != nil {
		return "", stage.Permanentf("production.runway.submit", err)
	}
	r.setHeaders(req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", stage.Transientf("production.runway.submit", err)
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus("production.runway.submit", resp); err != nil {
		return "", err
	}

	var out runwayGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", stage.Transientf("production.runway.submit", fmt.Errorf("decode response: %w", err))
	}
	if out.ID == "" {
		return "", stage.Permanentf("production.runway.submit", fmt.Errorf("no task id in response"))
	}
	return out.ID, nil
}

// Poll reads /tasks/{id} and maps Runway statuses onto the uniform task
// states.
func (r *Runway) Poll(ctx context.Context, taskID string) (stage.TaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return stage.TaskStatus{}, stage.Permanentf("production.runway.poll", err)
	}
	r.setHeaders(req)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return stage.TaskStatus{}, stage.Transientf("production.runway.poll", err)
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus("production.runway.poll", resp); err != nil {
		return stage.TaskStatus{}, err
	}

	var task runwayTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return stage.TaskStatus{}, stage.Transientf("production.runway.poll", fmt.Errorf("decode response: %w", err))
	}

	switch strings.ToUpper(task.Status) {
	case "PENDING":
		return stage.TaskStatus{State: stage.TaskQueued}, nil
	case "RUNNING":
		return stage.TaskStatus{State: stage.TaskRunning}, nil
	case "SUCCEEDED":
		status := stage.TaskStatus{State: stage.TaskSucceeded}
		if len(task.Output) > 0 {
			status.ArtifactRef = task.Output[0]
		}
		return status, nil
	case "FAILED", "CANCELLED", "THROTTLED":
		return stage.TaskStatus{State: stage.TaskFailed}, nil
	default:
		return stage.TaskStatus{}, stage.Permanentf("production.runway.poll", fmt.Errorf("unknown task status %q", task.Status))
	}
}

func (r *Runway) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("X-Runway-Version", runwayAPIVersion)
	req.Header.Set("Content-Type", "application/json")
}

// classifyHTTPStatus maps response codes onto the error taxonomy: rate
// limits and server errors retry, client errors do not.
func classifyHTTPStatus(op string, resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return stage.Transientf(op, err)
	}
	return stage.Permanentf(op, err)
}

// buildShotPrompt flattens a script's shot list into a single generation
// prompt, capped at maxLen characters.
func buildShotPrompt(script *types.GeneratedScript, maxLen int) string {
	var parts []string
	if script.Title != "" {
		parts = append(parts, script.Title)
	}
	if script.StyleTag != "" {
		parts = append(parts, "Style: "+script.StyleTag)
	}
	for i, shot := range script.Shots {
		if i >= 3 {
			break
		}
		desc := shot.Prompt
		if desc == "" {
			desc = shot.Description
		}
		if desc != "" {
			parts = append(parts, desc)
		}
		if shot.CameraMotion != "" {
			parts = append(parts, "Camera: "+shot.CameraMotion)
		}
	}
	prompt := strings.Join(parts, ". ")
	if len(prompt) > maxLen {
		prompt = prompt[:maxLen]
	}
	return prompt
}
