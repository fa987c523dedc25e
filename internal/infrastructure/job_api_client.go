package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/dl-client/internal/domain"
)

// maxErrorBody limits how much of an error response ends up in messages
const maxErrorBody = 256

// JobAPIClient talks to the download backend over HTTP. It keeps no state
// between calls and never retries.
type JobAPIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewJobAPIClient creates a client for the backend described by config.
// A nil httpClient gets one with config.RequestTimeout.
func NewJobAPIClient(config *domain.ServerConfig, httpClient *http.Client, logger *zap.Logger) *JobAPIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.RequestTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &JobAPIClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateJob submits target for download
func (c *JobAPIClient) CreateJob(ctx context.Context, target string) (*domain.JobHandle, error) {
	endpoint := c.baseURL + "/download/?start=" + url.QueryEscape(target)

	body, _, err := c.do(ctx, "create job", http.MethodPost, endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: create job: %w", domain.ErrMalformedResponse, err)
	}

	id, err := decodeJobID(payload.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: create job: %w", domain.ErrMalformedResponse, err)
	}

	c.logger.Debug("Job created", zap.String("job_id", id), zap.String("url", target))
	return &domain.JobHandle{ID: id}, nil
}

// GetStatus returns the status report of job id
func (c *JobAPIClient) GetStatus(ctx context.Context, id string) (*domain.StatusReport, error) {
	body, _, err := c.do(ctx, "get status", http.MethodGet, c.jobURL(id)+"/status")
	if err != nil {
		return nil, err
	}

	// An empty tag is an unknown tag, only a missing field is malformed
	var payload struct {
		Status   *string `json:"status"`
		Progress float64 `json:"progress"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: get status: %w", domain.ErrMalformedResponse, err)
	}
	if payload.Status == nil {
		return nil, fmt.Errorf("%w: get status: missing status field", domain.ErrMalformedResponse)
	}

	return &domain.StatusReport{
		Status:   domain.StatusTag(*payload.Status),
		Progress: payload.Progress,
	}, nil
}

// FetchArtifact downloads the artifact of job id together with its
// content-disposition header, which may be empty
func (c *JobAPIClient) FetchArtifact(ctx context.Context, id string) (*domain.TransferResult, error) {
	body, header, err := c.do(ctx, "fetch artifact", http.MethodGet, c.jobURL(id))
	if err != nil {
		return nil, err
	}

	return &domain.TransferResult{
		Data:        body,
		Disposition: header.Get("Content-Disposition"),
	}, nil
}

// DeleteJob removes job id from the backend
func (c *JobAPIClient) DeleteJob(ctx context.Context, id string) error {
	_, _, err := c.do(ctx, "delete job", http.MethodDelete, c.jobURL(id))
	return err
}

func (c *JobAPIClient) jobURL(id string) string {
	return c.baseURL + "/download/" + url.PathEscape(id)
}

// do performs one request and returns the body of a successful response
func (c *JobAPIClient) do(ctx context.Context, op, method, endpoint string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: read body: %w", domain.ErrTransport, op, err)
	}

	if err := checkStatusCode(op, resp.StatusCode, body); err != nil {
		c.logger.Debug("Backend returned error status",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, nil, err
	}

	return body, resp.Header, nil
}

// checkStatusCode maps a non-success HTTP status to a transport error
func checkStatusCode(op string, code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	if code == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, domain.ErrJobNotFound)
	}

	detail := strings.TrimSpace(string(body))
	if len(detail) > maxErrorBody {
		detail = detail[:maxErrorBody] + "..."
	}
	if detail == "" {
		return fmt.Errorf("%w: %s: unexpected status %d", domain.ErrTransport, op, code)
	}
	return fmt.Errorf("%w: %s: unexpected status %d: %s", domain.ErrTransport, op, code, detail)
}

// decodeJobID accepts the id as a JSON string or number
func decodeJobID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("missing id field")
	}

	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", err
		}
		if id == "" {
			return "", fmt.Errorf("empty id")
		}
		return id, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("id is neither string nor number: %s", raw)
	}
	return n.String(), nil
}
