package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bibble/internal/domain"
	"bibble/internal/infra"
)

// ErrMissingCredentials indicates that the client was configured without an
// endpoint or API key.
var ErrMissingCredentials = fmt.Errorf("image: endpoint and api key are required: %w", domain.ErrConfiguration)

// Options configures the Azure OpenAI image edit client.
type Options struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	// Timeout bounds a single edit call when HTTPClient is nil.
	Timeout time.Duration
	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *infra.Logger
}

// Client performs single-shot image edits.
type Client struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *infra.Logger
}

type editResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	apiKey := strings.TrimSpace(opts.APIKey)
	if endpoint == "" || apiKey == "" {
		return nil, ErrMissingCredentials
	}
	deployment := strings.TrimSpace(opts.Deployment)
	if deployment == "" {
		deployment = "gpt-image-1"
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "2025-04-01-preview"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 180 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		deployment: deployment,
		apiVersion: apiVersion,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Deployment returns the configured deployment name.
func (c *Client) Deployment() string {
	return c.deployment
}

// Edit sends one edit request and returns the first image in the response.
// The mask, when present, is forwarded untouched; the service validates it
// against the base image.
func (c *Client) Edit(ctx context.Context, req domain.EditRequest) (*domain.Artifact, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, domain.Rejected("image: edit", err.Error())
	}

	body, contentType, err := encodeEditForm(req)
	if err != nil {
		return nil, fmt.Errorf("image: encode form: %w", err)
	}
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/images/edits?api-version=%s",
		c.endpoint, url.PathEscape(c.deployment), url.QueryEscape(c.apiVersion))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.ContextError(ctx, "image: edit", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("image: build request: %w", err)
	}
	httpReq.Header.Set("api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.ContextError(ctx, "image: edit", ctxErr)
		}
		return nil, &domain.RemoteError{Op: "image: edit", Kind: domain.ErrServiceUnavailable, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.ContextError(ctx, "image: edit", ctxErr)
		}
		return nil, &domain.RemoteError{Op: "image: edit", StatusCode: resp.StatusCode, Message: "read response", Kind: domain.ErrServiceUnavailable, Err: err}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		kind := domain.ClassifyStatus(resp.StatusCode)
		if kind == nil {
			kind = domain.ErrServiceUnavailable
		}
		return nil, &domain.RemoteError{Op: "image: edit", StatusCode: resp.StatusCode, Message: apiErrorMessage(raw), Kind: kind}
	}

	var decoded editResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &domain.RemoteError{Op: "image: edit", StatusCode: resp.StatusCode, Message: "decode response", Kind: domain.ErrProviderFailure, Err: err}
	}
	if len(decoded.Data) == 0 || strings.TrimSpace(decoded.Data[0].B64JSON) == "" {
		return nil, &domain.RemoteError{Op: "image: edit", StatusCode: resp.StatusCode, Message: "response has no image data", Kind: domain.ErrProviderFailure}
	}
	data, err := domain.DecodeBase64(decoded.Data[0].B64JSON)
	if err != nil {
		return nil, &domain.RemoteError{Op: "image: edit", StatusCode: resp.StatusCode, Message: "decode image", Kind: domain.ErrProviderFailure, Err: err}
	}

	c.logger.Debug().
		Str("deployment", c.deployment).
		Int("images", len(req.Images)).
		Bool("mask", len(req.Mask) > 0).
		Dur("elapsed", time.Since(start)).
		Msg("image: edit completed")

	return &domain.Artifact{
		Filename:    uuid.NewString() + ".png",
		ContentType: "image/png",
		Data:        data,
	}, nil
}

func encodeEditForm(req domain.EditRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if len(req.Images) == 1 {
		if err := writeFilePart(w, "image", "image.png", req.Images[0]); err != nil {
			return nil, "", err
		}
	} else {
		for i, img := range req.Images {
			if err := writeFilePart(w, fmt.Sprintf("image[%d]", i), fmt.Sprintf("image_%d.png", i), img); err != nil {
				return nil, "", err
			}
		}
	}
	fields := []struct{ name, value string }{
		{"prompt", req.Prompt},
		{"size", req.Size},
		{"quality", req.Quality},
	}
	for _, f := range fields {
		if err := writeTextPart(w, f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if len(req.Mask) > 0 {
		if err := writeFilePart(w, "mask", "mask.png", req.Mask); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, field, filename string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

func writeTextPart(w *multipart.Writer, field, value string) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, field))
	h.Set("Content-Type", "text/plain")
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.WriteString(part, value)
	return err
}

func apiErrorMessage(raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
		if detail.Error.Code != "" {
			return fmt.Sprintf("%s (%s)", detail.Error.Message, detail.Error.Code)
		}
		return detail.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

var _ Editor = (*Client)(nil)
