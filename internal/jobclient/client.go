package jobclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vareview/internal/config"
	"vareview/internal/services"
)

// Job statuses reported by the service.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusError      = "error"
	StatusCancelled  = "cancelled"
)

// MaxArtifactBytes bounds a downloaded bundle.
const MaxArtifactBytes int64 = 4 << 30

const stage = "jobclient"

// Job is the metadata the service reports for one job.
type Job struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	VideoFilename string   `json:"video_filename"`
	Pipelines     []string `json:"pipelines"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
	CompletedAt   string   `json:"completed_at"`
	ErrorMessage  string   `json:"error_message"`
}

// Terminal reports whether the job will not change status again.
func (j Job) Terminal() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Health is the service health summary.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ProgressFunc receives cumulative bytes. total is -1 when the server did not
// send a length.
type ProgressFunc func(received, total int64)

// Client is what ingestion needs from the remote service.
type Client interface {
	GetJob(ctx context.Context, id string) (Job, error)
	DownloadArtifacts(ctx context.Context, id string, progress ProgressFunc) ([]byte, error)
}

// HTTPDoer describes the HTTP client used by HTTPClient.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient implements Client over the service's REST API.
type HTTPClient struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// New constructs an HTTPClient. A nil doer uses http.DefaultClient.
func New(baseURL, token string, doer HTTPDoer) *HTTPClient {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  doer,
	}
}

// NewFromConfig builds a client from the [server] section. The request
// timeout bounds the wait for response headers; whole downloads are bounded
// by the caller's context.
func NewFromConfig(cfg *config.Config) *HTTPClient {
	if cfg == nil {
		return New("", "", nil)
	}
	httpClient := &http.Client{}
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		transport := base.Clone()
		transport.ResponseHeaderTimeout = cfg.RequestTimeout()
		httpClient.Transport = transport
	}
	return New(cfg.Server.BaseURL, cfg.Server.APIToken, httpClient)
}

// BaseURL returns the normalized service root.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// GetJob fetches one job's metadata.
func (c *HTTPClient) GetJob(ctx context.Context, id string) (Job, error) {
	var job Job
	if err := c.getJSON(ctx, "get job", jobPath(id), &job); err != nil {
		return Job{}, err
	}
	if job.Pipelines == nil {
		job.Pipelines = []string{}
	}
	return job, nil
}

// ListJobs returns up to perPage jobs, newest first as the server orders them.
func (c *HTTPClient) ListJobs(ctx context.Context, perPage int) ([]Job, error) {
	if perPage <= 0 {
		perPage = 100
	}
	var payload struct {
		Jobs []Job `json:"jobs"`
	}
	path := "/api/v1/jobs?per_page=" + strconv.Itoa(perPage)
	if err := c.getJSON(ctx, "list jobs", path, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

// Health queries the service health endpoint.
func (c *HTTPClient) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.getJSON(ctx, "health", "/api/v1/system/health", &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// DownloadArtifacts streams the job's zip bundle into memory, reporting
// cumulative progress after every read.
func (c *HTTPClient) DownloadArtifacts(ctx context.Context, id string, progress ProgressFunc) ([]byte, error) {
	resp, err := c.do(ctx, "download artifacts", jobPath(id)+"/artifacts", "application/zip")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	total := resp.ContentLength
	if total < 0 {
		if n, perr := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); perr == nil && n >= 0 {
			total = n
		}
	}
	if total > MaxArtifactBytes {
		return nil, services.Wrap(services.ErrValidation, stage, "download artifacts",
			fmt.Sprintf("Bundle of %d bytes exceeds limit", total), nil)
	}
	if progress != nil {
		progress(0, total)
	}

	buf := make([]byte, 0, initialCapacity(total))
	chunk := make([]byte, 64<<10)
	var received int64
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			received += int64(n)
			if received > MaxArtifactBytes {
				return nil, services.Wrap(services.ErrValidation, stage, "download artifacts", "Bundle exceeds size limit", nil)
			}
			buf = append(buf, chunk[:n]...)
			if progress != nil {
				progress(received, total)
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return nil, classify(ctx, "download artifacts", rerr)
		}
	}
	if total >= 0 && received != total {
		return nil, services.Wrap(services.ErrTransient, stage, "download artifacts",
			fmt.Sprintf("Received %d of %d bytes", received, total), nil)
	}
	return buf, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, operation, path string, out any) error {
	resp, err := c.do(ctx, operation, path, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16<<20)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return classify(ctx, operation, err)
		}
		return services.Wrap(services.ErrValidation, stage, operation, "Unreadable response body", err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, operation, path, accept string) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, stage, operation, "Server base_url is not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stage, operation, "Build request", err)
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(ctx, operation, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		return nil, statusError(operation, resp)
	}
	return resp, nil
}

func statusError(operation string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	message := fmt.Sprintf("Server returned %d", resp.StatusCode)
	if detail := strings.TrimSpace(string(snippet)); detail != "" {
		message += ": " + detail
	}
	var marker error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		marker = services.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		marker = services.ErrConfiguration
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		marker = services.ErrTimeout
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		marker = services.ErrTransient
	default:
		marker = services.ErrValidation
	}
	return services.Wrap(marker, stage, operation, message, nil)
}

func classify(ctx context.Context, operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, operation, "Request timed out", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, stage, operation, "Request timed out", err)
	}
	return services.Wrap(services.ErrTransient, stage, operation, "Request failed", err)
}

func jobPath(id string) string {
	return "/api/v1/jobs/" + url.PathEscape(strings.TrimSpace(id))
}

func initialCapacity(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return min(total, 64<<20)
}
