package production

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"trend-pipeline/stage"
	"trend-pipeline/types"
)

const pikaBaseURL = "https://api.pika.art/v1"

// Pika drives the Pika generation API behind the same submit/poll surface
// as Runway.
type Pika struct {
	apiKey      string
	model       string
	aspectRatio string
	baseURL     string
	httpClient  *http.Client
}

// NewPika reads PIKA_API_KEY from the environment.
func NewPika(aspectRatio string) (*Pika, error) {
	apiKey := os.Getenv("PIKA_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("PIKA_API_KEY not set")
	}
	return &Pika{
		apiKey:      apiKey,
		model:       "1.5",
		aspectRatio: aspectRatio,
		baseURL:     pikaBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (p *Pika) Name() string { return "pika" }

func (p *Pika) Capabilities() stage.Capabilities {
	return stage.Capabilities{Idempotent: false, Retryable: true}
}

type pikaGenerateRequest struct {
	PromptText string      `json:"promptText"`
	Model      string      `json:"model"`
	Options    pikaOptions `json:"options"`
}

type pikaOptions struct {
	AspectRatio string `json:"aspectRatio"`
	FrameRate   int    `json:"frameRate"`
}

type pikaGenerateResponse struct {
	ID string `json:"id"`
}

type pikaVideoResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"resultUrl,omitempty"`
}

// Submit posts the script as a generation request and returns the
// generation ID.
func (p *Pika) Submit(ctx context.Context, script *types.GeneratedScript) (string, error) {
	reqBody := pikaGenerateRequest{
		PromptText: buildShotPrompt(script, 500),
		Model:      p.model,
		Options: pikaOptions{
			AspectRatio: p.aspectRatio,
			FrameRate:   24,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", stage.Permanentf("production.pika.submit", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", stage.Permanentf("production.pika.submit", err)
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", stage.Transientf("production.pika.submit", err)
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus("production.pika.submit", resp); err != nil {
		return "", err
	}

	var out pikaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", stage.Transientf("production.pika.submit", fmt.Errorf("decode response: %w", err))
	}
	if out.ID == "" {
		return "", stage.Permanentf("production.pika.submit", fmt.Errorf("no generation id in response"))
	}
	return out.ID, nil
}

// Poll reads /videos/{id} and maps Pika statuses onto the uniform task
// states.
func (p *Pika) Poll(ctx context.Context, taskID string) (stage.TaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/videos/"+taskID, nil)
	if err != nil {
		return stage.TaskStatus{}, stage.Permanentf("production.pika.poll", err)
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stage.TaskStatus{}, stage.Transientf("production.pika.poll", err)
	}
	defer resp.Body.Close()

	if err := classifyHTTPStatus("production.pika.poll", resp); err != nil {
		return stage.TaskStatus{}, err
	}

	var video pikaVideoResponse
	if err := json.NewDecoder(resp.Body).Decode(&video); err != nil {
		return stage.TaskStatus{}, stage.Transientf("production.pika.poll", fmt.Errorf("decode response: %w", err))
	}

	switch strings.ToLower(video.Status) {
	case "queued", "pending":
		return stage.TaskStatus{State: stage.TaskQueued}, nil
	case "generating", "running":
		return stage.TaskStatus{State: stage.TaskRunning}, nil
	case "finished", "succeeded":
		return stage.TaskStatus{State: stage.TaskSucceeded, ArtifactRef: video.ResultURL}, nil
	case "failed", "cancelled":
		return stage.TaskStatus{State: stage.TaskFailed}, nil
	default:
		return stage.TaskStatus{}, stage.Permanentf("production.pika.poll", fmt.Errorf("unknown video status %q", video.Status))
	}
}

func (p *Pika) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
