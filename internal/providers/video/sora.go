package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bibble/internal/domain"
	"bibble/internal/infra"
	"bibble/internal/poll"
)

// ErrMissingCredentials indicates that the client was configured without an
// endpoint or API key.
var ErrMissingCredentials = fmt.Errorf("video: endpoint and api key are required: %w", domain.ErrConfiguration)

// Options configures the Azure OpenAI Sora client.
type Options struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Model      string

	PollInterval   time.Duration
	MaxWait        time.Duration
	MaxPollRetries int
	Clock          poll.Clock

	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *infra.Logger
}

// Client submits video generation jobs, polls them and downloads results.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *infra.Logger
	poller     *poll.Poller
}

type createJobRequest struct {
	Prompt    string `json:"prompt"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	NSeconds  int    `json:"n_seconds"`
	NVariants int    `json:"n_variants"`
	Model     string `json:"model"`
}

type jobResponse struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	FailureReason string       `json:"failure_reason"`
	Generations   []generation `json:"generations"`
}

type generation struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults. It fails with
// ErrMissingCredentials before any network activity when the endpoint or
// key is absent.
func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	apiKey := strings.TrimSpace(opts.APIKey)
	if endpoint == "" || apiKey == "" {
		return nil, ErrMissingCredentials
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "preview"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = domain.DefaultVideoModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		apiVersion: apiVersion,
		model:      model,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
	c.poller = poll.New(c.Status, poll.Options{
		Interval:   opts.PollInterval,
		MaxWait:    opts.MaxWait,
		MaxRetries: opts.MaxPollRetries,
		Clock:      opts.Clock,
		Logger:     logger,
	})
	return c, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Submit creates a generation job and returns its handle.
func (c *Client) Submit(ctx context.Context, req domain.VideoRequest) (domain.JobHandle, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return domain.JobHandle{}, domain.Rejected("video: submit", err.Error())
	}
	payload := createJobRequest{
		Prompt:    req.Prompt,
		Width:     req.Width,
		Height:    req.Height,
		NSeconds:  req.Seconds,
		NVariants: req.Variants,
		Model:     req.Model,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("video: encode request: %w", err)
	}

	var out jobResponse
	if err := c.doJSON(ctx, "video: submit", http.MethodPost, c.jobsURL(""), body, &out, domain.ErrServiceUnavailable); err != nil {
		return domain.JobHandle{}, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return domain.JobHandle{}, &domain.RemoteError{Op: "video: submit", Message: "response has no job id", Kind: domain.ErrProviderFailure}
	}
	handle := toHandle(out)
	if handle.RemoteStatus == "" {
		handle.Status = domain.JobStatusQueued
	}
	c.logger.Info().
		Str("job_id", handle.ID).
		Str("model", req.Model).
		Int("seconds", req.Seconds).
		Str("resolution", fmt.Sprintf("%dx%d", req.Width, req.Height)).
		Msg("video: job submitted")
	return handle, nil
}

// Status performs a single status check. Transport failures, throttling and
// 5xx responses are reported as domain.ErrTransientPoll.
func (c *Client) Status(ctx context.Context, id string) (domain.JobHandle, error) {
	if strings.TrimSpace(id) == "" {
		return domain.JobHandle{}, domain.Rejected("video: status", "job id is required")
	}
	var out jobResponse
	if err := c.doJSON(ctx, "video: status", http.MethodGet, c.jobsURL(id), nil, &out, domain.ErrTransientPoll); err != nil {
		return domain.JobHandle{}, err
	}
	handle := toHandle(out)
	if handle.ID == "" {
		handle.ID = id
	}
	return handle, nil
}

// Checks exposes the lazy status sequence for handle.
func (c *Client) Checks(ctx context.Context, handle domain.JobHandle) iter.Seq2[domain.JobHandle, error] {
	return c.poller.Checks(ctx, handle)
}

// AwaitCompletion polls until handle reaches a terminal status.
func (c *Client) AwaitCompletion(ctx context.Context, handle domain.JobHandle) (domain.JobHandle, error) {
	return c.poller.AwaitCompletion(ctx, handle)
}

// FetchResult downloads the first generation of a succeeded job.
func (c *Client) FetchResult(ctx context.Context, handle domain.JobHandle) (*domain.Artifact, error) {
	if handle.Status != domain.JobStatusSucceeded {
		return nil, domain.Rejected("video: fetch", fmt.Sprintf("job %s is %s, not succeeded", handle.ID, handle.Status))
	}
	if handle.ResultRef == "" {
		return nil, &domain.RemoteError{Op: "video: fetch", Message: fmt.Sprintf("job %s has no generations", handle.ID), Kind: domain.ErrProviderFailure}
	}
	endpoint := fmt.Sprintf("%s/openai/v1/video/generations/%s/content/video?api-version=%s",
		c.endpoint, url.PathEscape(handle.ResultRef), url.QueryEscape(c.apiVersion))

	resp, err := c.do(ctx, "video: fetch", http.MethodGet, endpoint, nil, domain.ErrServiceUnavailable)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.ContextError(ctx, "video: fetch", ctxErr)
		}
		return nil, &domain.RemoteError{Op: "video: fetch", Message: "read content", Kind: domain.ErrServiceUnavailable, Err: err}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = "video/mp4"
	}
	c.logger.Debug().
		Str("job_id", handle.ID).
		Str("generation_id", handle.ResultRef).
		Int("bytes", len(data)).
		Msg("video: content downloaded")
	return &domain.Artifact{
		Filename:    handle.ID + ".mp4",
		ContentType: contentType,
		Data:        data,
	}, nil
}

// Generate submits req, waits for completion and downloads the result.
// The returned handle reflects the last observed state even on error.
func (c *Client) Generate(ctx context.Context, req domain.VideoRequest) (domain.JobHandle, *domain.Artifact, error) {
	handle, err := c.Submit(ctx, req)
	if err != nil {
		return handle, nil, err
	}
	handle, err = c.AwaitCompletion(ctx, handle)
	if err != nil {
		return handle, nil, err
	}
	artifact, err := c.FetchResult(ctx, handle)
	return handle, artifact, err
}

func (c *Client) jobsURL(id string) string {
	base := c.endpoint + "/openai/v1/video/generations/jobs"
	if id != "" {
		base += "/" + url.PathEscape(id)
	}
	return base + "?api-version=" + url.QueryEscape(c.apiVersion)
}

func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, body []byte, out any, transient error) error {
	resp, err := c.do(ctx, op, method, endpoint, body, transient)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: "decode response", Kind: domain.ErrProviderFailure, Err: err}
	}
	return nil
}

// do issues the request and maps failures onto the error taxonomy. Failures
// that may clear on their own are reported with the transient kind.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte, transient error) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.ContextError(ctx, op, err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.ContextError(ctx, op, ctxErr)
		}
		return nil, &domain.RemoteError{Op: op, Kind: transient, Err: err}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		kind := domain.ClassifyStatus(resp.StatusCode)
		if errors.Is(kind, domain.ErrServiceUnavailable) || kind == nil {
			kind = transient
		}
		return nil, &domain.RemoteError{Op: op, StatusCode: resp.StatusCode, Message: readAPIError(resp.Body), Kind: kind}
	}
	return resp, nil
}

func toHandle(out jobResponse) domain.JobHandle {
	handle := domain.JobHandle{
		ID:            strings.TrimSpace(out.ID),
		RemoteStatus:  out.Status,
		Status:        domain.ParseRemoteStatus(out.Status),
		FailureReason: out.FailureReason,
	}
	if handle.RemoteStatus == "" {
		handle.Status = domain.JobStatusRunning
	}
	for _, g := range out.Generations {
		if id := strings.TrimSpace(g.ID); id != "" {
			handle.ResultRef = id
			break
		}
	}
	return handle
}

func readAPIError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return err.Error()
	}
	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		if parsed.Error.Code != "" {
			return fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Code)
		}
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(data))
}
