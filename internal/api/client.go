// Package api talks to the managed translation endpoint and to presigned
// storage URLs. Every endpoint call is a JSON POST whose "type" field selects
// the operation.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// maxResponseBytes bounds how much of an endpoint response is read.
	maxResponseBytes = 1 << 20
	// maxErrorBodyChars bounds the body excerpt kept in HTTPError.
	maxErrorBodyChars = 512
)

type Client struct {
	endpoint     string
	client       *http.Client
	uploadClient *http.Client
	logger       zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient sets the client used for endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithUploadClient sets the client used for presigned PUT uploads, which
// usually need a longer timeout than endpoint calls.
func WithUploadClient(c *http.Client) Option {
	return func(cl *Client) { cl.uploadClient = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:     strings.TrimSpace(endpoint),
		client:       &http.Client{Timeout: 30 * time.Second},
		uploadClient: &http.Client{Timeout: 5 * time.Minute},
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Translate(ctx context.Context, req TextRequest) (*TextResponse, error) {
	var out TextResponse
	if err := c.post(ctx, "translate text", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUploadURL(ctx context.Context, req UploadURLRequest) (*UploadTarget, error) {
	var out UploadTarget
	if err := c.post(ctx, "get upload url", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartDocumentJob(ctx context.Context, req DocumentRequest) (*JobHandle, error) {
	var out JobHandle
	if err := c.post(ctx, "start document job", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckStatus fetches the current state of jobID. The returned DownloadURL
// is cleared unless the job is COMPLETED.
func (c *Client) CheckStatus(ctx context.Context, jobID string) (*Job, error) {
	var out Job
	if err := c.post(ctx, "check status", StatusRequest{JobID: jobID}, &out); err != nil {
		return nil, err
	}
	out.JobID = jobID
	if out.Status != StatusCompleted {
		out.DownloadURL = ""
	}
	return &out, nil
}

// Upload PUTs body to the presigned target. The Content-Type header must be
// the target's MIME type or the storage signature will not validate.
func (c *Client) Upload(ctx context.Context, target UploadTarget, body io.Reader, size int64) error {
	const op = "upload document"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, target.UploadURL, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	httpReq.ContentLength = size
	httpReq.Header.Set("Content-Type", target.MIMEType)

	start := time.Now()
	resp, err := c.uploadClient.Do(httpReq)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug().
		Int64("bytes", size).
		Str("content_type", target.MIMEType).
		Dur("latency", time.Since(start)).
		Msg("document uploaded")
	return nil
}

func (c *Client) post(ctx context.Context, op string, req Request, out any) error {
	if c.endpoint == "" {
		return fmt.Errorf("%s: endpoint is not configured", op)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	log := c.logger.With().Str("type", string(req.Type())).Str("request_id", requestID).Logger()

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if err := validateResponse(req.Type(), data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
	}

	log.Debug().Dur("latency", time.Since(start)).Int("status", resp.StatusCode).Msg("endpoint call")
	return nil
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyChars))
	return strings.TrimSpace(string(data))
}
