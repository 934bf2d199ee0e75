package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/droneedit/droneedit-agent/internal/logging"
)

const maxServiceResponse = 4 << 20

// ServiceError is a non-2xx reply from the analysis service.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("analysis service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// ServiceClient posts analysis requests to an HTTP service at
// <base>/v1/<op>.
type ServiceClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewServiceClient creates a client for baseURL.
func NewServiceClient(baseURL string, timeout time.Duration, logger *slog.Logger) *ServiceClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ServiceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrDiscard(logger),
	}
}

// Post sends req to op and decodes the JSON reply into resp.
func (c *ServiceClient) Post(ctx context.Context, op string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}
	url := c.baseURL + "/v1/" + op

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxServiceResponse))
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	c.logger.Info("analysis service call",
		"op", op,
		"status", httpResp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return &ServiceError{StatusCode: httpResp.StatusCode, Body: truncate(string(respBody), 256)}
	}
	if err := json.Unmarshal(respBody, resp); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
