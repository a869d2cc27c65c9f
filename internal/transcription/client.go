package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appErrors "github.com/clipflow/clipflow-api/pkg/errors"
)

// Job statuses reported by the speech-to-text provider.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Config holds connection settings for the transcription provider.
type Config struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Job is the provider's view of a transcription request.
type Job struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Transcript string `json:"text"`
	Error      string `json:"error,omitempty"`
}

// Client talks to an asynchronous speech-to-text HTTP API: submit a media
// URL, poll the job until it completes.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option configures optional client behaviour.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient constructs a provider client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the provider can be called at all.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Enabled && c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

type submitRequest struct {
	MediaURL string `json:"media_url"`
}

// Submit queues a transcription job for the media URL and returns the
// provider's job ID.
func (c *Client) Submit(ctx context.Context, mediaURL string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("transcription provider not configured")
	}

	body, err := json.Marshal(submitRequest{MediaURL: mediaURL})
	if err != nil {
		return "", fmt.Errorf("encode submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/transcripts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	job, err := c.do(req)
	if err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fmt.Errorf("provider returned no job id")
	}
	return job.ID, nil
}

// Fetch returns the current state of a transcription job.
func (c *Client) Fetch(ctx context.Context, jobID string) (Job, error) {
	if !c.Configured() {
		return Job{}, fmt.Errorf("transcription provider not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+"/transcripts/"+jobID, nil)
	if err != nil {
		return Job{}, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	return c.do(req)
}

func (c *Client) do(req *http.Request) (Job, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Job{}, appErrors.Wrap(err, appErrors.ErrProviderUnavailable.Code, appErrors.ErrProviderUnavailable.Status, "transcription provider unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Job{}, fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("transcription provider returned %d: %s", resp.StatusCode, truncate(string(payload), 256))
		return Job{}, appErrors.Wrap(err, appErrors.ErrProviderUnavailable.Code, appErrors.ErrProviderUnavailable.Status, "transcription provider rejected request")
	}

	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, appErrors.Wrap(err, appErrors.ErrMalformedResponse.Code, appErrors.ErrMalformedResponse.Status, "transcription response is not valid JSON")
	}
	return job, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
