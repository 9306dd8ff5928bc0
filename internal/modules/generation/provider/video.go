package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adforge/core/internal/config"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollCeiling  = 5 * time.Minute
)

// httpPollVideoProvider drives the submit-then-poll contract most video
// vendors expose: POST a job, then poll its status until a downloadable URL
// appears. Polling stops at a wall-clock ceiling regardless of the job state
// the vendor reports.
type httpPollVideoProvider struct {
	id       string
	apiKey   string
	endpoint string
	model    string
	interval time.Duration
	ceiling  time.Duration
	client   *http.Client
}

func newHTTPPollProvider(pc config.ProviderConfig, ceiling time.Duration) Provider {
	interval := defaultPollInterval
	if pc.PollIntervalSeconds > 0 {
		interval = time.Duration(pc.PollIntervalSeconds) * time.Second
	}
	if ceiling <= 0 {
		ceiling = defaultPollCeiling
	}
	return &httpPollVideoProvider{
		id:       pc.ID,
		apiKey:   strings.TrimSpace(pc.APIKey),
		endpoint: strings.TrimRight(strings.TrimSpace(pc.Endpoint), "/"),
		model:    strings.TrimSpace(pc.Model),
		interval: interval,
		ceiling:  ceiling,
		client:   &http.Client{},
	}
}

func (p *httpPollVideoProvider) ID() string { return p.id }

func (p *httpPollVideoProvider) Kind() Kind { return KindVideo }

// AttemptCeiling tells the fallback orchestrator how long a single attempt may
// run; a poll-based attempt is bounded by the poll ceiling, not the per-kind
// timeout.
func (p *httpPollVideoProvider) AttemptCeiling() time.Duration { return p.ceiling }

func (p *httpPollVideoProvider) Submit(ctx context.Context, req Request) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, p.ceiling)
	defer cancel()

	jobID, err := p.submitJob(ctx, req)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}

		status, url, err := p.pollJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch status {
		case "succeeded", "completed":
			if url == "" {
				return nil, fmt.Errorf("video job %s finished without a url", jobID)
			}
			return &Output{ProviderID: p.id, URL: url, ContentType: "video/mp4"}, nil
		case "failed", "cancelled":
			return nil, fmt.Errorf("video job %s ended in state %s", jobID, status)
		}
	}
}

func (p *httpPollVideoProvider) submitJob(ctx context.Context, req Request) (string, error) {
	payload := map[string]interface{}{
		"prompt": req.Prompt,
	}
	if p.model != "" {
		payload["model"] = p.model
	}
	if strings.TrimSpace(req.Style) != "" {
		payload["style"] = req.Style
	}
	if strings.TrimSpace(req.ReferenceURL) != "" {
		payload["reference_url"] = req.ReferenceURL
	}

	body, _ := json.Marshal(payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("video provider error: %s", strings.TrimSpace(string(respBody)))
	}

	var result struct {
		JobID string `json:"job_id"`
		ID    string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	jobID := result.JobID
	if jobID == "" {
		jobID = result.ID
	}
	if jobID == "" {
		return "", errors.New("video provider returned no job id")
	}
	return jobID, nil
}

func (p *httpPollVideoProvider) pollJob(ctx context.Context, jobID string) (status, url string, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/jobs/"+jobID, nil)
	if err != nil {
		return "", "", err
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", "", fmt.Errorf("video provider error: %s", strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Status string `json:"status"`
		URL    string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", "", err
	}
	return strings.ToLower(strings.TrimSpace(result.Status)), result.URL, nil
}
