// Package kling talks to the Kling image-to-video generation API: one
// submission call that returns a job id, a status poll by job id, and a plain
// download of the finished artifact.
package kling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("kling: api key is required")

// APIError is a non-2xx response from the service. The body is kept verbatim
// so submission failures can surface it to the record store unchanged.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kling: status %d: %s", e.StatusCode, e.Body)
}

// State classifies a remote job status. The remote set is open ended; any
// value that is not recognized as terminal is treated as still running.
type State int

const (
	StateRunning State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "running"
	}
}

// JobStatus is one observation of a remote job.
type JobStatus struct {
	State   State
	Raw     string
	Outputs []string
	Error   string
}

// SubmitRequest carries the generation inputs.
type SubmitRequest struct {
	Duration      string
	GuidanceScale float64
	Image         string
	Prompt        string
}

// Options configures the Kling client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Kling generation API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type submitPayload struct {
	Duration      string  `json:"duration"`
	GuidanceScale float64 `json:"guidance_scale"`
	Image         string  `json:"image"`
	Prompt        string  `json:"prompt"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
	ID    string `json:"id"`
}

type statusResponse struct {
	Status  string   `json:"status"`
	Outputs []string `json:"outputs"`
	Error   string   `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kling.ai/v1"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Submit starts one generation job and returns its job id. A non-2xx
// response is returned as *APIError with the body text intact.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if strings.TrimSpace(req.Image) == "" {
		return "", errors.New("kling: image url is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("kling: prompt is required")
	}
	scale := req.GuidanceScale
	if scale == 0 {
		scale = 0.5
	}
	payload := submitPayload{
		Duration:      req.Duration,
		GuidanceScale: scale,
		Image:         req.Image,
		Prompt:        req.Prompt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("kling: encode request: %w", err)
	}
	endpoint := c.baseURL + "/videos/generations"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("kling: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, apiErr, err := c.send(httpReq)
	if err != nil {
		return "", err
	}
	if apiErr != nil {
		return "", apiErr
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("kling: decode response: %w", err)
	}
	jobID := decoded.JobID
	if jobID == "" {
		jobID = decoded.ID
	}
	if jobID == "" {
		return "", errors.New("kling: response carried no job id")
	}
	c.logger.Debug().Str("job_id", jobID).Msg("kling: job submitted")
	return jobID, nil
}

// PollStatus fetches one status observation for a job. A non-2xx response is
// returned as *APIError; callers polling a running job treat it as transient.
func (c *Client) PollStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	endpoint := c.baseURL + "/videos/generations/" + url.PathEscape(jobID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("kling: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, apiErr, err := c.send(httpReq)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, apiErr
	}

	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("kling: decode status: %w", err)
	}
	return &JobStatus{
		State:   interpretStatus(decoded.Status),
		Raw:     decoded.Status,
		Outputs: decoded.Outputs,
		Error:   decoded.Error,
	}, nil
}

// Download fetches the finished artifact. A non-2xx response is returned as
// *APIError so callers can distinguish an unavailable artifact from a
// transport failure.
func (c *Client) Download(ctx context.Context, artifactURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(artifactURL))
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("kling: invalid artifact url: %s", artifactURL)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("kling: build download request: %w", err)
	}
	raw, apiErr, err := c.send(httpReq)
	if err != nil {
		return nil, err
	}
	if apiErr != nil {
		return nil, apiErr
	}
	c.logger.Debug().Int("bytes", len(raw)).Msg("kling: artifact downloaded")
	return raw, nil
}

// send executes the request and splits the outcome three ways: transport
// error, non-2xx *APIError, or the response body.
func (c *Client) send(req *http.Request) ([]byte, *APIError, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("kling: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("kling: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}, nil
	}
	return raw, nil, nil
}

func interpretStatus(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed":
		return StateCompleted
	case "failed":
		return StateFailed
	default:
		return StateRunning
	}
}
