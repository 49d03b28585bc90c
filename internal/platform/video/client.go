package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fableworks/storyforge/internal/config"
)

// Terminal job states reported by the provider. Anything else means the job
// is still running.
const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// Client implements the generation.VideoSynthesizer interface against a
// submit-and-poll video generation API: one POST creates a task, repeated
// GETs follow it until a terminal state or the configured deadline.
type Client struct {
	logger   *slog.Logger
	endpoint string
	apiKey   string
	model    string
	poll     time.Duration
	deadline time.Duration
	http     *http.Client
}

// NewClient creates a video Client from the video configuration.
func NewClient(cfg config.VideoConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("video endpoint cannot be empty")
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 30 * time.Second
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 10 * time.Minute
	}

	return &Client{
		logger:   logger.With("component", "video_client"),
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		poll:     poll,
		deadline: deadline,
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type submitRequest struct {
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
}

type taskStatus struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Synthesize submits a video job for the image and polls it to completion.
// Providers that render synchronously may answer the submit call with a video
// URL directly; that short-circuits the poll loop.
func (c *Client) Synthesize(ctx context.Context, prompt, imageURL string) (string, error) {
	if imageURL == "" {
		return "", errors.New("image URL cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	task, err := c.submit(ctx, prompt, imageURL)
	if err != nil {
		return "", err
	}
	if task.VideoURL != "" {
		return task.VideoURL, nil
	}
	if task.TaskID == "" {
		return "", errors.New("provider returned neither a video URL nor a task ID")
	}

	c.logger.InfoContext(ctx, "video task submitted",
		"task_id", task.TaskID,
		"poll_interval", c.poll)

	for {
		select {
		case <-ctx.Done():
		case <-time.After(c.poll):
		}
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("video task %s did not finish in time: %w", task.TaskID, err)
		}

		st, err := c.query(ctx, task.TaskID)
		if err != nil {
			return "", err
		}

		switch {
		case strings.EqualFold(st.Status, statusSuccess):
			if st.VideoURL == "" {
				return "", fmt.Errorf("video task %s succeeded without a URL", task.TaskID)
			}
			return st.VideoURL, nil
		case strings.EqualFold(st.Status, statusFailed):
			return "", fmt.Errorf("video task %s failed: %s", task.TaskID, st.Error)
		}
	}
}

func (c *Client) submit(ctx context.Context, prompt, imageURL string) (*taskStatus, error) {
	body, err := json.Marshal(submitRequest{
		Model:    c.model,
		Prompt:   prompt,
		ImageURL: imageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode video request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/task", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build video request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) query(ctx context.Context, taskID string) (*taskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/task/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build video status request: %w", err)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*taskStatus, error) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video provider call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("video provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var st taskStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode video provider response: %w", err)
	}

	return &st, nil
}
